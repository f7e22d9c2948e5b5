package frame

import (
	"fmt"

	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

const (
	dataCellInst = "i_frame_data"
	rqbufInst    = "i_frame_rqbuf"
)

// frameNets bundles the memory-mapped programming interface of one module.
// The refs may point at ports or at decoder/buffer pins once the interface
// has been stepped through intermediate cells.
type frameNets struct {
	ctrl prog.CtrlNets
	ce   netlist.NetRef
	we   netlist.NetRef
	addr netlist.NetRef
	din  netlist.NetRef
	dout netlist.NetRef
}

// getOrCreateFrameNets fetches or creates the frame interface ports of a
// module. Port names listed in excludes are neither created nor returned.
func getOrCreateFrameNets(
	m *netlist.Module,
	wordWidth, addrWidth int,
	excludes ...string,
) frameNets {
	skip := make(map[string]bool, len(excludes))
	for _, e := range excludes {
		skip[e] = true
	}

	nets := frameNets{ctrl: prog.GetOrCreateCtrlNets(m)}

	ensure := func(name string, width int, dir netlist.Direction) netlist.NetRef {
		if m.Port(name) == nil {
			m.AddPort(name, width, dir).WithClass(netlist.NetProg)
		}
		return m.PortRef(name)
	}

	if !skip["prog_ce"] {
		nets.ce = ensure("prog_ce", 1, netlist.DirInput)
	}
	if !skip["prog_we"] {
		nets.we = ensure("prog_we", 1, netlist.DirInput)
	}
	if !skip["prog_addr"] {
		nets.addr = ensure("prog_addr", addrWidth, netlist.DirInput)
	}
	if !skip["prog_din"] {
		nets.din = ensure("prog_din", wordWidth, netlist.DirInput)
	}
	if !skip["prog_dout"] {
		nets.dout = ensure("prog_dout", wordWidth, netlist.DirOutput)
	}

	return nets
}

// ensureDataCell registers (or fetches) the sram-data cell holding dataWidth
// plain configuration bits behind a word-addressed write port.
func ensureDataCell(
	db *netlist.Database,
	wordWidth, dataWidth int,
) *netlist.Module {
	name := fmt.Sprintf("prism_frame_sramdata_d%d", dataWidth)
	key := netlist.ModuleKey(name)

	if cell := db.Get(netlist.ViewDesign, key); cell != nil {
		return cell
	}

	words := (dataWidth + wordWidth - 1) / wordWidth
	addrWidth := prog.CeilLog2(words)
	if addrWidth == 0 {
		addrWidth = 1
	}

	cell := netlist.NewModule(name, netlist.ViewDesign, netlist.ClassProg)
	addCtrlPorts(cell)
	cell.AddPort("prog_ce", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_we", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_addr", addrWidth, netlist.DirInput).
		WithClass(netlist.NetProg)
	cell.AddPort("prog_din", wordWidth, netlist.DirInput).
		WithClass(netlist.NetProg)
	cell.AddPort("prog_dout", wordWidth, netlist.DirOutput).
		WithClass(netlist.NetProg)
	cell.AddPort("prog_data_o", dataWidth, netlist.DirOutput).
		WithClass(netlist.NetProg)

	return db.Add(cell)
}

// ensureBufCell registers (or fetches) the single-stage request buffer of
// the given width.
func ensureBufCell(db *netlist.Database, width int) *netlist.Module {
	name := fmt.Sprintf("prism_frame_buf_d%d", width)
	key := netlist.ModuleKey(name)

	if cell := db.Get(netlist.ViewDesign, key); cell != nil {
		return cell
	}

	cell := netlist.NewModule(name, netlist.ViewDesign, netlist.ClassProg)
	cell.AddPort("prog_clk", 1, netlist.DirInput).AsClock().
		WithClass(netlist.NetProg)
	cell.AddPort("prog_rst", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("i", width, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("o", width, netlist.DirOutput).WithClass(netlist.NetProg)

	return db.Add(cell)
}

// ensureWldecCell registers (or fetches) a word-line decoder fanning one
// ce/we pair out to fanout targets selected by addrWidth address bits.
func ensureWldecCell(
	db *netlist.Database,
	addrWidth, fanout int,
) *netlist.Module {
	name := fmt.Sprintf("prism_frame_wldec_a%dn%d", addrWidth, fanout)
	key := netlist.ModuleKey(name)

	if cell := db.Get(netlist.ViewDesign, key); cell != nil {
		return cell
	}

	cell := netlist.NewModule(name, netlist.ViewDesign, netlist.ClassProg)
	cell.AddPort("ce_i", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("we_i", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("addr_i", addrWidth, netlist.DirInput).
		WithClass(netlist.NetProg)
	cell.AddPort("ce_o", fanout, netlist.DirOutput).WithClass(netlist.NetProg)
	cell.AddPort("we_o", fanout, netlist.DirOutput).WithClass(netlist.NetProg)

	return db.Add(cell)
}

// ensureRbmergeCell registers (or fetches) a registered read-back merger
// selecting one of sources word inputs by addrWidth address bits.
func ensureRbmergeCell(
	db *netlist.Database,
	wordWidth, addrWidth, sources, stages int,
) *netlist.Module {
	name := fmt.Sprintf("prism_frame_rbmerge_a%dn%ds%d", addrWidth, sources, stages)
	key := netlist.ModuleKey(name)

	if cell := db.Get(netlist.ViewDesign, key); cell != nil {
		return cell
	}

	cell := netlist.NewModule(name, netlist.ViewDesign, netlist.ClassProg)
	cell.AddPort("prog_clk", 1, netlist.DirInput).AsClock().
		WithClass(netlist.NetProg)
	cell.AddPort("prog_rst", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("addr", addrWidth, netlist.DirInput).WithClass(netlist.NetProg)
	for i := 0; i < sources; i++ {
		cell.AddPort(fmt.Sprintf("din%d", i), wordWidth, netlist.DirInput).
			WithClass(netlist.NetProg)
	}
	cell.AddPort("dout", wordWidth, netlist.DirOutput).WithClass(netlist.NetProg)

	return db.Add(cell)
}

func addCtrlPorts(cell *netlist.Module) {
	cell.AddPort("prog_clk", 1, netlist.DirInput).AsClock().
		WithClass(netlist.NetProg)
	cell.AddPort("prog_rst", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_done", 1, netlist.DirInput).WithClass(netlist.NetProg)
}
