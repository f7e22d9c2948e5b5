package scanchain

import (
	"fmt"

	"github.com/sarchlab/prism/netlist"
)

const (
	delimCellName = "prism_scanchain_delim"

	headDelimInst = "i_scanchain_head"
	tailDelimInst = "i_scanchain_tail"
	alignInst     = "i_prog_align"
)

// ensureDelimCell registers the chain delimiter: a registered cut-point
// that re-times prog_we into prog_we_o at block/box boundaries.
func ensureDelimCell(db *netlist.Database, chainWidth int) *netlist.Module {
	if cell := db.Get(netlist.ViewDesign, delimCellName); cell != nil {
		return cell
	}

	cell := netlist.NewModule(delimCellName, netlist.ViewDesign, netlist.ClassProg)
	addChainPorts(cell, chainWidth)
	cell.AddPort("prog_we_o", 1, netlist.DirOutput).WithClass(netlist.NetProg)

	return db.Add(cell)
}

// ensureDataCell registers (or fetches) the data register cell exposing
// dataWidth configuration bits out of a chainWidth-wide shift path.
func ensureDataCell(
	db *netlist.Database,
	chainWidth, dataWidth int,
) *netlist.Module {
	name := fmt.Sprintf("prism_scanchain_data_d%d", dataWidth)
	key := netlist.ModuleKey(name)

	if cell := db.Get(netlist.ViewDesign, key); cell != nil {
		return cell
	}

	cell := netlist.NewModule(name, netlist.ViewDesign, netlist.ClassProg)
	addChainPorts(cell, chainWidth)
	cell.AddPort("prog_data", dataWidth, netlist.DirOutput).
		WithClass(netlist.NetProg)

	return db.Add(cell)
}

// EnsureDataCell exposes the data register cell to protocols embedding
// scanchain segments.
func EnsureDataCell(
	db *netlist.Database,
	chainWidth, dataWidth int,
) *netlist.Module {
	return ensureDataCell(db, chainWidth, dataWidth)
}

// EnsureDelimCell exposes the chain delimiter cell to protocols embedding
// scanchain segments.
func EnsureDelimCell(db *netlist.Database, chainWidth int) *netlist.Module {
	return ensureDelimCell(db, chainWidth)
}

func addChainPorts(cell *netlist.Module, chainWidth int) {
	cell.AddPort("prog_clk", 1, netlist.DirInput).AsClock().
		WithClass(netlist.NetProg)
	cell.AddPort("prog_rst", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_done", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_we", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_din", chainWidth, netlist.DirInput).
		WithClass(netlist.NetProg)
	cell.AddPort("prog_dout", chainWidth, netlist.DirOutput).
		WithClass(netlist.NetProg)
}
