package pktchain

import (
	"fmt"

	"github.com/sarchlab/prism/netlist"
)

// Cell names of the packet-network building blocks.
const (
	ClaspCellName       = "prism_pktchain_clasp"
	AssembleCellName    = "prism_pktchain_frame_assemble"
	DisassembleCellName = "prism_pktchain_frame_disassemble"
	RouterCellName      = "prism_pktchain_router"
	DispatcherCellName  = "prism_pktchain_dispatcher"
	GathererCellName    = "prism_pktchain_gatherer"
)

// phitPortName returns the port name of one phit-channel wire, optionally
// suffixed with the branch it belongs to.
func phitPortName(kind string, branch int) string {
	if branch < 0 {
		return "phit_" + kind
	}

	return fmt.Sprintf("phit_%s_b%d", kind, branch)
}

// phitNets is the valid/full handshaked phit channel pair of a module or
// cell, keyed by wire kind ("i", "i_wr", "i_full", "o", "o_wr", "o_full",
// or the ox/oy/ix/iy variants of dispatchers and gatherers).
type phitNets map[string]netlist.NetRef

// getOrCreatePhitNets fetches or creates the phit-channel ports of a
// module. branch suffixes the port names; ixy/oxy select the forked
// input/output variants.
func getOrCreatePhitNets(
	m *netlist.Module,
	phitWidth, branch int,
	ixy, oxy bool,
) phitNets {
	nets := make(phitNets)

	ensure := func(kind string, width int, dir netlist.Direction) {
		name := phitPortName(kind, branch)
		if m.Port(name) == nil {
			m.AddPort(name, width, dir).WithClass(netlist.NetProg)
		}
		nets[kind] = m.PortRef(name)
	}

	inKinds := []string{"i_wr", "i"}
	outKinds := []string{"i_full"}
	if ixy {
		inKinds = []string{"ix_wr", "iy_wr", "ix", "iy"}
		outKinds = []string{"ix_full", "iy_full"}
	}

	outKinds = append(outKinds, "o_wr", "o")
	inKinds = append(inKinds, "o_full")
	if oxy {
		outKinds = outKinds[:len(outKinds)-2]
		outKinds = append(outKinds, "ox_wr", "oy_wr", "ox", "oy")
		inKinds = inKinds[:len(inKinds)-1]
		inKinds = append(inKinds, "ox_full", "oy_full")
	}

	for _, kind := range inKinds {
		width := 1
		if kind == "i" || kind == "ix" || kind == "iy" {
			width = phitWidth
		}
		ensure(kind, width, netlist.DirInput)
	}

	for _, kind := range outKinds {
		width := 1
		if kind == "o" || kind == "ox" || kind == "oy" {
			width = phitWidth
		}
		ensure(kind, width, netlist.DirOutput)
	}

	return nets
}

// ensureNetworkCells registers the packet-network cells in the design view.
func ensureNetworkCells(db *netlist.Database, chainWidth, phitWidth int) {
	ensureClaspCell(db, chainWidth)
	ensureFIFOCell(db, AssembleCellName)
	ensureFIFOCell(db, DisassembleCellName)
	ensureRouterCell(db, chainWidth, phitWidth)
	ensureDispatcherCell(db, phitWidth)
	ensureGathererCell(db, phitWidth)
}

// ensureClaspCell registers the clasp gluing a router's frame engine onto
// its local scan chain.
func ensureClaspCell(db *netlist.Database, chainWidth int) *netlist.Module {
	if cell := db.Get(netlist.ViewDesign, ClaspCellName); cell != nil {
		return cell
	}

	cell := netlist.NewModule(ClaspCellName, netlist.ViewDesign, netlist.ClassProg)
	cell.AddPort("prog_clk", 1, netlist.DirInput).AsClock().
		WithClass(netlist.NetProg)
	cell.AddPort("prog_rst", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_we", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_din", chainWidth, netlist.DirInput).
		WithClass(netlist.NetProg)
	cell.AddPort("prog_dout", chainWidth, netlist.DirOutput).
		WithClass(netlist.NetProg)
	cell.AddPort("prog_we_o", 1, netlist.DirOutput).WithClass(netlist.NetProg)

	return db.Add(cell)
}

// ensureFIFOCell registers a frame assembly/disassembly FIFO. The cell body
// is template-only; no netlist-level ports are needed.
func ensureFIFOCell(db *netlist.Database, name string) *netlist.Module {
	if cell := db.Get(netlist.ViewDesign, netlist.ModuleKey(name)); cell != nil {
		return cell
	}

	return db.Add(netlist.NewModule(name, netlist.ViewDesign, netlist.ClassProg))
}

// ensureRouterCell registers the leaf router: one phit channel in, one phit
// channel out, and the local scan-chain interface.
func ensureRouterCell(
	db *netlist.Database,
	chainWidth, phitWidth int,
) *netlist.Module {
	if cell := db.Get(netlist.ViewDesign, RouterCellName); cell != nil {
		return cell
	}

	cell := netlist.NewModule(RouterCellName, netlist.ViewDesign, netlist.ClassProg)
	cell.AddPort("prog_clk", 1, netlist.DirInput).AsClock().
		WithClass(netlist.NetProg)
	cell.AddPort("prog_rst", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_we", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_din", chainWidth, netlist.DirInput).
		WithClass(netlist.NetProg)
	cell.AddPort("prog_dout", chainWidth, netlist.DirOutput).
		WithClass(netlist.NetProg)
	cell.AddPort("prog_we_o", 1, netlist.DirOutput).WithClass(netlist.NetProg)
	getOrCreatePhitNets(cell, phitWidth, -1, false, false)

	return db.Add(cell)
}

// ensureDispatcherCell registers the dispatcher forking one phit channel
// into the pass-through (x) and branch (y) directions.
func ensureDispatcherCell(db *netlist.Database, phitWidth int) *netlist.Module {
	if cell := db.Get(netlist.ViewDesign, DispatcherCellName); cell != nil {
		return cell
	}

	cell := netlist.NewModule(DispatcherCellName, netlist.ViewDesign,
		netlist.ClassProg)
	cell.AddPort("prog_clk", 1, netlist.DirInput).AsClock().
		WithClass(netlist.NetProg)
	cell.AddPort("prog_rst", 1, netlist.DirInput).WithClass(netlist.NetProg)
	getOrCreatePhitNets(cell, phitWidth, -1, false, true)

	return db.Add(cell)
}

// ensureGathererCell registers the gatherer merging the pass-through (x)
// and branch (y) return channels into one.
func ensureGathererCell(db *netlist.Database, phitWidth int) *netlist.Module {
	if cell := db.Get(netlist.ViewDesign, GathererCellName); cell != nil {
		return cell
	}

	cell := netlist.NewModule(GathererCellName, netlist.ViewDesign,
		netlist.ClassProg)
	cell.AddPort("prog_clk", 1, netlist.DirInput).AsClock().
		WithClass(netlist.NetProg)
	cell.AddPort("prog_rst", 1, netlist.DirInput).WithClass(netlist.NetProg)
	getOrCreatePhitNets(cell, phitWidth, -1, true, false)

	return db.Add(cell)
}
