package scanchain

import (
	"fmt"
	"log"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

// ChainPorts are the serial-shift ports of one module, with prog_we and
// prog_din resolved past the head delimiter when one is present.
type ChainPorts struct {
	Ctrl prog.CtrlNets
	WE   netlist.NetRef
	Din  netlist.NetRef
	Dout netlist.NetRef
}

// GetOrCreateChainPorts fetches or creates the scanchain ports of a module.
// Port names listed in excludes are neither created nor returned.
func GetOrCreateChainPorts(
	m *netlist.Module,
	chainWidth int,
	excludes ...string,
) ChainPorts {
	skip := make(map[string]bool, len(excludes))
	for _, e := range excludes {
		skip[e] = true
	}

	ports := ChainPorts{Ctrl: prog.GetOrCreateCtrlNets(m)}

	if !skip["prog_we"] {
		if delim := m.Instance(netlist.NameKey(headDelimInst)); delim != nil {
			ports.WE = delim.Pin("prog_we_o")
		} else {
			if m.Port("prog_we") == nil {
				m.AddPort("prog_we", 1, netlist.DirInput).
					WithClass(netlist.NetProg)
			}
			ports.WE = m.PortRef("prog_we")
		}
	}

	if !skip["prog_din"] {
		if m.Port("prog_din") == nil {
			m.AddPort("prog_din", chainWidth, netlist.DirInput).
				WithClass(netlist.NetProg)
		}
		ports.Din = m.PortRef("prog_din")
	}

	if !skip["prog_dout"] {
		if m.Port("prog_dout") == nil {
			m.AddPort("prog_dout", chainWidth, netlist.DirOutput).
				WithClass(netlist.NetProg)
		}
		ports.Dout = m.PortRef("prog_dout")
	}

	return ports
}

// chainState is the rolling end of the chain under construction.
type chainState struct {
	ports ChainPorts

	// we and din track the source that feeds the next chained segment.
	we  netlist.NetRef
	din netlist.NetRef

	// weChained is set once prog_we has been re-timed through a delimiter
	// or an embedded chain, requiring a prog_we_o output on the module.
	weChained bool
}

// insertChain inserts the scanchain into dmod, recursing bottom-up through
// instances that still lack a chain. It returns the total number of bits
// shifted through dmod.
func (s *Scanchain) insertChain(ctx *arch.Context, dmod *netlist.Module) int {
	if dmod.Class() == netlist.ClassPrimitive {
		panic(fmt.Sprintf("no programming information about module %v", dmod))
	}

	amod := ctx.DB.Get(netlist.ViewAbstract, dmod.Key())

	offset := 0
	var state *chainState

	for _, dinst := range s.iter(dmod) {
		switch dinst.Model.Class() {
		case netlist.ClassProg:
			panic(fmt.Sprintf(
				"existing programming cell found during programming cell insertion: %v",
				dinst))
		case netlist.ClassAux:
			continue
		}

		embedded := !dinst.HasPin("prog_data")
		bits := 0

		if embedded {
			bc, ok := s.bitcount[dinst.Model.Key()]
			if !ok {
				bc = s.insertChain(ctx, dinst.Model)
			}

			if bc == 0 {
				continue
			}

			bits = bc
		}

		if state == nil {
			state = s.openChain(ctx, dmod)
		}

		segment := dinst
		if !embedded {
			// The instance only exposes a flat prog_data bus; wrap it in a
			// sized data register.
			width := dinst.Model.Port("prog_data").Width
			cell := ensureDataCell(ctx.DB, s.chainWidth, width)
			segment = dmod.Instantiate(cell,
				netlist.NameKey(fmt.Sprintf("i_prog_data_%v", dinst.Key)))
			dmod.Connect(segment.Pin("prog_data"), dinst.Pin("prog_data"))
			bits = width
		}

		s.chainSegment(dmod, state, segment)

		bm := prog.NewDataBitmap(prog.DataRange{Offset: offset, Length: bits})
		s.instBitmap[dinst] = bm
		if amod != nil {
			if ainst := amod.Instance(dinst.Key); ainst != nil {
				s.instBitmap[ainst] = bm
			}
		}

		offset += bits
	}

	if state != nil {
		offset = s.closeChain(ctx, dmod, state, offset)
	}

	s.bitcount[dmod.Key()] = offset
	log.Printf("scanchain: inserted into %v, total bits: %d", dmod, offset)

	return offset
}

// openChain initializes the chain ports of dmod and, at block/box
// boundaries, inserts the head delimiter.
func (s *Scanchain) openChain(
	ctx *arch.Context,
	dmod *netlist.Module,
) *chainState {
	ports := GetOrCreateChainPorts(dmod, s.chainWidth)
	state := &chainState{ports: ports, we: ports.WE, din: ports.Din}

	if s.wantsDelimiters(dmod) &&
		dmod.Instance(netlist.NameKey(headDelimInst)) == nil {
		delim := dmod.Instantiate(ctx.DB.MustGet(netlist.ViewDesign, delimCellName),
			netlist.NameKey(headDelimInst))
		s.connectDelim(dmod, state, delim)
	}

	return state
}

// chainSegment daisy-chains one segment onto the rolling chain end.
func (s *Scanchain) chainSegment(
	dmod *netlist.Module,
	state *chainState,
	segment *netlist.Instance,
) {
	prog.ConnectCtrl(dmod, state.ports.Ctrl, segment)

	dmod.Connect(state.we, segment.Pin("prog_we"))
	dmod.Connect(state.din, segment.Pin("prog_din"))

	if segment.HasPin("prog_we_o") {
		state.we = segment.Pin("prog_we_o")
		state.weChained = true
	}

	state.din = segment.Pin("prog_dout")
}

// closeChain aligns the chain to the chain width, inserts the tail
// delimiter, and connects the module outputs. It returns the final bit
// count including padding.
func (s *Scanchain) closeChain(
	ctx *arch.Context,
	dmod *netlist.Module,
	state *chainState,
	offset int,
) int {
	if s.wantsDelimiters(dmod) {
		if rem := offset % s.chainWidth; rem != 0 {
			pad := s.chainWidth - rem
			cell := ensureDataCell(ctx.DB, s.chainWidth, pad)
			align := dmod.Instantiate(cell, netlist.NameKey(alignInst))
			s.chainSegment(dmod, state, align)
			offset += pad
		}

		if dmod.Instance(netlist.NameKey(tailDelimInst)) == nil {
			delim := dmod.Instantiate(
				ctx.DB.MustGet(netlist.ViewDesign, delimCellName),
				netlist.NameKey(tailDelimInst))
			s.connectDelim(dmod, state, delim)
		}
	}

	dmod.Connect(state.din, state.ports.Dout)

	if state.weChained {
		if dmod.Port("prog_we_o") == nil {
			dmod.AddPort("prog_we_o", 1, netlist.DirOutput).
				WithClass(netlist.NetProg)
		}
		dmod.Connect(state.we, dmod.PortRef("prog_we_o"))
	}

	return offset
}

func (s *Scanchain) connectDelim(
	dmod *netlist.Module,
	state *chainState,
	delim *netlist.Instance,
) {
	prog.ConnectCtrl(dmod, state.ports.Ctrl, delim)
	dmod.Connect(state.we, delim.Pin("prog_we"))
	dmod.Connect(state.din, delim.Pin("prog_din"))

	state.we = delim.Pin("prog_we_o")
	state.din = delim.Pin("prog_dout")
	state.weChained = true
}

func (s *Scanchain) wantsDelimiters(dmod *netlist.Module) bool {
	return s.delimiters &&
		(dmod.Class() == netlist.ClassBlock || dmod.Class().IsRoutingBox())
}

