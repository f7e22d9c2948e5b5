package prog

import (
	"fmt"
	"log"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
)

// BufferProgCtrl creates prog_clk/prog_rst/prog_done on the design-view top
// and recursively balances the buffering of prog_rst and prog_done so that
// every leaf sees them delayed by the depth of the deepest sibling subtree.
// It returns the number of buffering levels inside the top module.
//
// The balancing is depth-only: fan-out and wire delay are not analyzed.
func BufferProgCtrl(ctx *arch.Context) int {
	EnsureBufferCells(ctx.DB)

	levels := make(map[netlist.ModuleKey]int)

	return bufferModule(ctx.DB, ctx.Top(netlist.ViewDesign), levels)
}

func bufferModule(
	db *netlist.Database,
	m *netlist.Module,
	levels map[netlist.ModuleKey]int,
) int {
	switch m.Class() {
	case netlist.ClassPrimitive, netlist.ClassSwitch,
		netlist.ClassProg, netlist.ClassAux:
		// Terminal cells consume the signals combinationally or not at all.
		return 0
	}

	if l, ok := levels[m.Key()]; ok {
		return l
	}

	clk := getOrCreateRawCtrlPort(m, "prog_clk", true)
	rst := getOrCreateRawCtrlPort(m, "prog_rst", false)
	done := getOrCreateRawCtrlPort(m, "prog_done", false)

	switch m.Class() {
	case netlist.ClassSlice, netlist.ClassCluster:
		// No buffering inside slices; signals pass straight through.
		for _, inst := range m.Instances() {
			if l := bufferModule(db, inst.Model, levels); l != 0 {
				panic(fmt.Sprintf("unexpected buffering inside %v", inst))
			}

			connectCtrlPins(m, inst, clk, rst, done)
		}

		levels[m.Key()] = 0

		return 0

	case netlist.ClassBlock, netlist.ClassSwitchBox,
		netlist.ClassConnectionBox, netlist.ClassTile, netlist.ClassArray:
		l := bufferLevels(db, m, levels, clk, rst, done)
		levels[m.Key()] = l

		return l
	}

	panic(fmt.Sprintf("cannot buffer programming ctrl signals in %v module %v",
		m.Class(), m))
}

// bufferLevels buckets the children of m by their internal buffering level,
// then chains one prism_buf (rst) and one prism_bufr (done) pair per level
// so that shallower branches pass through one extra register per level
// below the deepest branch.
func bufferLevels(
	db *netlist.Database,
	m *netlist.Module,
	levels map[netlist.ModuleKey]int,
	clk, rst, done netlist.NetRef,
) int {
	children := m.Instances()
	buckets := [][]*netlist.Instance{nil}

	for _, inst := range children {
		l := bufferModule(db, inst.Model, levels)
		for l >= len(buckets) {
			buckets = append(buckets, nil)
		}

		buckets[l] = append(buckets[l], inst)
	}

	bufCell := db.MustGet(netlist.ViewDesign, BufCellName)
	bufrCell := db.MustGet(netlist.ViewDesign, BufrCellName)

	var prevRst, prevDone *netlist.Instance
	var rstL0 netlist.NetRef

	for l, insts := range buckets {
		bufRst := m.Instantiate(bufCell,
			netlist.NameKey(fmt.Sprintf("i_buf_prog_rst_l%d", l)))
		bufDone := m.Instantiate(bufrCell,
			netlist.NameKey(fmt.Sprintf("i_buf_prog_done_l%d", l)))

		if l == 0 {
			rstL0 = bufRst.Pin("Q")
		}

		m.Connect(clk, bufRst.Pin("C"))
		m.Connect(clk, bufDone.Pin("C"))
		m.Connect(rstL0, bufDone.Pin("R"))

		for _, inst := range insts {
			connectCtrlPins(m, inst, clk, bufRst.Pin("Q"), bufDone.Pin("Q"))
		}

		if prevRst != nil {
			m.Connect(bufRst.Pin("Q"), prevRst.Pin("D"))
			m.Connect(bufDone.Pin("Q"), prevDone.Pin("D"))
		}

		prevRst, prevDone = bufRst, bufDone
	}

	m.Connect(rst, prevRst.Pin("D"))
	m.Connect(done, prevDone.Pin("D"))

	log.Printf("prog: buffered ctrl signals in %v: %d level(s)", m, len(buckets))

	return len(buckets)
}

func getOrCreateRawCtrlPort(
	m *netlist.Module,
	name string,
	clock bool,
) netlist.NetRef {
	if m.Port(name) == nil {
		p := m.AddPort(name, 1, netlist.DirInput).WithClass(netlist.NetProg)
		if clock {
			p.AsClock()
		}
	}

	return m.PortRef(name)
}

func connectCtrlPins(
	m *netlist.Module,
	inst *netlist.Instance,
	clk, rst, done netlist.NetRef,
) {
	if inst.HasPin("prog_clk") && m.SourceOf(inst.Pin("prog_clk")) == nil {
		m.Connect(clk, inst.Pin("prog_clk"))
	}

	if inst.HasPin("prog_rst") && m.SourceOf(inst.Pin("prog_rst")) == nil {
		m.Connect(rst, inst.Pin("prog_rst"))
	}

	if inst.HasPin("prog_done") && m.SourceOf(inst.Pin("prog_done")) == nil {
		m.Connect(done, inst.Pin("prog_done"))
	}
}
