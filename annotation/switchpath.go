// Package annotation provides the switch-path annotation pass. For every
// programmable connection in the abstract view it resolves the ordered list
// of switch-input pins that realize the connection in the design view, so
// that the programming-data bits selecting the connection can be located
// later by the FASM delegates.
package annotation

import (
	"log"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/flow"
	"github.com/sarchlab/prism/netlist"
)

// SwitchPathPass implements flow.Pass.
type SwitchPathPass struct{}

var _ flow.Pass = SwitchPathPass{}

// Key returns "annotation.switch_path".
func (SwitchPathPass) Key() string {
	return "annotation.switch_path"
}

// Dependences returns no dependences.
func (SwitchPathPass) Dependences() []string {
	return nil
}

// Conflicts returns no conflicts.
func (SwitchPathPass) Conflicts() []string {
	return nil
}

// PassesAfterSelf requires programming-circuitry insertion to run later.
func (SwitchPathPass) PassesAfterSelf() []string {
	return []string{"prog.insertion"}
}

// Run annotates every block-level abstract module reachable from the top.
func (SwitchPathPass) Run(ctx *arch.Context) error {
	visited := make(map[netlist.ModuleKey]bool)
	annotateModule(ctx, ctx.Top(netlist.ViewAbstract), visited)

	return nil
}

func annotateModule(
	ctx *arch.Context,
	amod *netlist.Module,
	visited map[netlist.ModuleKey]bool,
) {
	if amod.Class() == netlist.ClassPrimitive || visited[amod.Key()] {
		return
	}

	visited[amod.Key()] = true

	for _, inst := range amod.Instances() {
		annotateModule(ctx, inst.Model, visited)
	}

	// Arrays and tiles hold no programmable connections of their own.
	switch amod.Class() {
	case netlist.ClassArray, netlist.ClassTile:
		return
	}

	dmod := ctx.DB.Get(netlist.ViewDesign, amod.Key())
	if dmod == nil {
		log.Printf("annotation: no design view available for %v; skipped", amod)
		return
	}

	for _, conn := range amod.Connections() {
		if path, ok := resolveSwitchPath(dmod, conn); ok {
			conn.SwitchPath = path
		}
	}
}

// resolveSwitchPath finds the design-view path from the connection's source
// to its sink, collecting the input pins of every switch traversed, in
// source-to-sink order. A direct wire yields an empty (but present) path.
func resolveSwitchPath(
	dmod *netlist.Module,
	conn *netlist.Connection,
) ([]netlist.NetRef, bool) {
	src := toDesignRef(dmod, conn.Src)
	dst := toDesignRef(dmod, conn.Dst)

	if src.IsNil() || dst.IsNil() {
		return nil, false
	}

	// Bit 0 stands in for the bus: programmable connections are built
	// bitwise-parallel, every bit traverses the same switches.
	seen := make(map[netlist.NetRef]bool)
	path, ok := traceBack(dmod, src.Bit(0), dst.Bit(0), nil, seen)
	if !ok {
		return nil, false
	}

	// traceBack accumulates sink-to-source; reverse into forward order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path, true
}

func traceBack(
	dmod *netlist.Module,
	src, cur netlist.NetRef,
	acc []netlist.NetRef,
	seen map[netlist.NetRef]bool,
) ([]netlist.NetRef, bool) {
	// Whether src is reachable from a bit depends on the bit alone, so a
	// bit that failed once can be cut off on every later visit. This also
	// bounds the search on cyclic switch graphs.
	if seen[cur] {
		return nil, false
	}
	seen[cur] = true

	driver := dmod.SourceOf(cur)
	if driver == nil {
		return nil, false
	}

	from := driverBit(driver, cur)

	if sameBit(from, src) {
		return acc, true
	}

	// Step through a switch: its output is driven from any of its inputs.
	if from.Kind == netlist.RefPin &&
		from.Instance.Model.Class() == netlist.ClassSwitch &&
		from.Port.Direction == netlist.DirOutput {
		sw := from.Instance

		in := sw.Model.Port("i")
		if in == nil {
			panic("no configuration circuitry for switch " + sw.String())
		}

		for bit := 0; bit < in.Width; bit++ {
			pin := sw.Pin("i").Bit(bit)
			if path, ok := traceBack(dmod, src, pin, append(acc, pin), seen); ok {
				return path, true
			}
		}

		return nil, false
	}

	// A pass-through net (non-switch): keep tracing.
	if from.Kind == netlist.RefPin || from.Kind == netlist.RefPort {
		if sameBit(from, cur) {
			return nil, false
		}

		return traceBack(dmod, src, from, acc, seen)
	}

	return nil, false
}

// driverBit maps the sink bit back onto the corresponding source bit of the
// driving connection.
func driverBit(conn *netlist.Connection, sink netlist.NetRef) netlist.NetRef {
	offset := sink.Lo - conn.Dst.Lo
	return conn.Src.Bit(offset)
}

func sameBit(a, b netlist.NetRef) bool {
	return a.Kind == b.Kind && a.Instance == b.Instance &&
		a.Port == b.Port && a.Lo == b.Lo
}

// toDesignRef maps an abstract-view reference onto the design view by port
// name and instance key.
func toDesignRef(dmod *netlist.Module, ref netlist.NetRef) netlist.NetRef {
	switch ref.Kind {
	case netlist.RefPort:
		if dmod.Port(ref.Port.Name) == nil {
			return netlist.NetRef{}
		}

		return dmod.PortRef(ref.Port.Name).Slice(ref.Lo, ref.Hi)

	case netlist.RefPin:
		dinst := dmod.Instance(ref.Instance.Key)
		if dinst == nil || !dinst.HasPin(ref.Port.Name) {
			return netlist.NetRef{}
		}

		return dinst.Pin(ref.Port.Name).Slice(ref.Lo, ref.Hi)
	}

	return netlist.NetRef{}
}
