package netlist

import "fmt"

// RefKind discriminates the forms a NetRef can take.
type RefKind int

// Net reference kinds.
const (
	// RefPort references bits of a port on the enclosing module.
	RefPort RefKind = iota

	// RefPin references bits of a port on an instance inside the module.
	RefPin

	// RefConst references a constant driver.
	RefConst
)

// A NetRef references a bit slice of a port, a pin, or a constant. NetRefs
// are values; slicing produces a new reference into the same underlying bus.
type NetRef struct {
	Kind     RefKind
	Instance *Instance
	Port     *Port
	Lo, Hi   int
	Value    uint64
}

// ConstRef returns a reference to a constant of the given width.
func ConstRef(value uint64, width int) NetRef {
	if width <= 0 || width > 64 {
		panic(fmt.Sprintf("constant width must be in [1, 64], got %d", width))
	}

	return NetRef{Kind: RefConst, Lo: 0, Hi: width, Value: value}
}

// IsNil reports whether the reference is the zero value.
func (r NetRef) IsNil() bool {
	return r.Kind != RefConst && r.Port == nil
}

// Width returns the number of bits referenced.
func (r NetRef) Width() int {
	return r.Hi - r.Lo
}

// Slice returns a reference to bits [lo, hi) of this reference.
func (r NetRef) Slice(lo, hi int) NetRef {
	if lo < 0 || hi > r.Width() || lo >= hi {
		panic(fmt.Sprintf("slice [%d:%d) out of bounds of %v (width %d)",
			lo, hi, r, r.Width()))
	}

	s := r
	s.Lo = r.Lo + lo
	s.Hi = r.Lo + hi

	return s
}

// Bit returns a single-bit reference to bit i of this reference.
func (r NetRef) Bit(i int) NetRef {
	return r.Slice(i, i+1)
}

func (r NetRef) String() string {
	var base string

	switch r.Kind {
	case RefPort:
		base = r.Port.String()
	case RefPin:
		base = fmt.Sprintf("%v.%s", r.Instance, r.Port.Name)
	case RefConst:
		return fmt.Sprintf("%d'h%x", r.Width(), r.Value)
	}

	if r.Port != nil && (r.Lo != 0 || r.Hi != r.Port.Width) {
		return fmt.Sprintf("%s[%d:%d]", base, r.Hi-1, r.Lo)
	}

	return base
}

// Owner returns the module a port or pin reference belongs to, or nil for
// constants.
func (r NetRef) Owner() *Module {
	switch r.Kind {
	case RefPort:
		return r.Port.Owner
	case RefPin:
		return r.Instance.Parent
	}

	return nil
}

type bitRef struct {
	instance *Instance
	port     *Port
	bit      int
}

// A Connection is a directed edge between a source and a sink bit slice of
// equal width inside one module. SwitchPath, written by the switch-path
// annotation pass, is the ordered list of switch-input pins that realize a
// programmable connection.
type Connection struct {
	Module     *Module
	Src, Dst   NetRef
	SwitchPath []NetRef
}

func (c *Connection) String() string {
	return fmt.Sprintf("%v->%v", c.Src, c.Dst)
}

// Connect creates a directed connection from src to dst. Both references
// must be of equal width and must belong to this module. A sink may receive
// multiple sources only in the abstract view (programmable connections);
// in the design view double-driving a sink bit panics.
func (m *Module) Connect(src, dst NetRef) *Connection {
	if src.IsNil() || dst.IsNil() {
		panic(fmt.Sprintf("cannot connect nil reference in module %s", m.name))
	}

	if src.Width() != dst.Width() {
		panic(fmt.Sprintf("width mismatch connecting %v (%d) to %v (%d) in module %s",
			src, src.Width(), dst, dst.Width(), m.name))
	}

	if dst.Kind == RefConst {
		panic(fmt.Sprintf("constant %v cannot be a sink in module %s", dst, m.name))
	}

	for _, r := range []NetRef{src, dst} {
		if mod := r.Owner(); mod != nil && mod != m {
			panic(fmt.Sprintf("reference %v does not belong to module %s", r, m.name))
		}
	}

	conn := &Connection{Module: m, Src: src, Dst: dst}
	m.conns = append(m.conns, conn)

	for i := 0; i < dst.Width(); i++ {
		key := bitRef{instance: dst.Instance, port: dst.Port, bit: dst.Lo + i}
		if _, driven := m.sinkIndex[key]; driven && m.view == ViewDesign {
			panic(fmt.Sprintf("sink bit %v[%d] already driven in module %s",
				dst, dst.Lo+i, m.name))
		}

		m.sinkIndex[key] = conn
	}

	return conn
}

// SourceOf returns the connection driving the first bit of ref, or nil if
// the bit is undriven.
func (m *Module) SourceOf(ref NetRef) *Connection {
	return m.sinkIndex[bitRef{instance: ref.Instance, port: ref.Port, bit: ref.Lo}]
}

// ConnectionBetween returns the connection from src to dst, or nil. The
// references must match the endpoints of the connection exactly.
func (m *Module) ConnectionBetween(src, dst NetRef) *Connection {
	for _, c := range m.conns {
		if sameRef(c.Src, src) && sameRef(c.Dst, dst) {
			return c
		}
	}

	return nil
}

// Connections returns all connections of the module in creation order.
func (m *Module) Connections() []*Connection {
	return m.conns
}

// ConnectionsTo returns all connections whose sink overlaps ref, in creation
// order. In the abstract view this enumerates the programmable sources of a
// mux sink.
func (m *Module) ConnectionsTo(ref NetRef) []*Connection {
	var conns []*Connection

	for _, c := range m.conns {
		if c.Dst.Instance == ref.Instance && c.Dst.Port == ref.Port &&
			c.Dst.Lo < ref.Hi && ref.Lo < c.Dst.Hi {
			conns = append(conns, c)
		}
	}

	return conns
}

func sameRef(a, b NetRef) bool {
	return a.Kind == b.Kind && a.Instance == b.Instance && a.Port == b.Port &&
		a.Lo == b.Lo && a.Hi == b.Hi && a.Value == b.Value
}
