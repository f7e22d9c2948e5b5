package prog

import (
	"github.com/sarchlab/prism/netlist"
)

// Names of the shared auxiliary cells and of the well-known instances the
// buffering pass leaves behind. Protocol packages look these up to pick up
// the buffered nets instead of the raw ports.
const (
	BufCellName  = "prism_buf"
	BufrCellName = "prism_bufr"

	BufRstL0Inst  = "i_buf_prog_rst_l0"
	BufDoneL0Inst = "i_buf_prog_done_l0"
)

// EnsureBufferCells registers the clocked pass-through buffer (prism_buf:
// C, D -> Q) and the reset-gated buffer (prism_bufr: C, R, D -> Q) in the
// design view if they are not present yet.
func EnsureBufferCells(db *netlist.Database) {
	if db.Get(netlist.ViewDesign, BufCellName) == nil {
		buf := netlist.NewModule(BufCellName, netlist.ViewDesign, netlist.ClassAux)
		buf.AddPort("C", 1, netlist.DirInput).AsClock().WithClass(netlist.NetProg)
		buf.AddPort("D", 1, netlist.DirInput).WithClass(netlist.NetProg)
		buf.AddPort("Q", 1, netlist.DirOutput).WithClass(netlist.NetProg)
		db.Add(buf)
	}

	if db.Get(netlist.ViewDesign, BufrCellName) == nil {
		bufr := netlist.NewModule(BufrCellName, netlist.ViewDesign, netlist.ClassAux)
		bufr.AddPort("C", 1, netlist.DirInput).AsClock().WithClass(netlist.NetProg)
		bufr.AddPort("R", 1, netlist.DirInput).WithClass(netlist.NetProg)
		bufr.AddPort("D", 1, netlist.DirInput).WithClass(netlist.NetProg)
		bufr.AddPort("Q", 1, netlist.DirOutput).WithClass(netlist.NetProg)
		db.Add(bufr)
	}
}

// CtrlNets are the basic programming control nets of one module, resolved
// to the buffered versions when the buffering pass has run on the module.
type CtrlNets struct {
	Clk  netlist.NetRef
	Rst  netlist.NetRef
	Done netlist.NetRef
}

// ConnectCtrl connects the control nets to the matching pins of inst,
// skipping pins that already have a driver (typically one left behind by
// the buffering pass).
func ConnectCtrl(m *netlist.Module, ctrl CtrlNets, inst *netlist.Instance) {
	connectCtrlPins(m, inst, ctrl.Clk, ctrl.Rst, ctrl.Done)
}

// GetOrCreateCtrlNets fetches or creates prog_clk, prog_rst, and prog_done
// on a module. When level-0 buffers are present, the buffered outputs are
// returned instead of the raw ports.
func GetOrCreateCtrlNets(m *netlist.Module) CtrlNets {
	var nets CtrlNets

	if p := m.Port("prog_clk"); p != nil {
		nets.Clk = m.PortRef("prog_clk")
	} else {
		m.AddPort("prog_clk", 1, netlist.DirInput).AsClock().WithClass(netlist.NetProg)
		nets.Clk = m.PortRef("prog_clk")
	}

	if buf := m.Instance(netlist.NameKey(BufRstL0Inst)); buf != nil {
		nets.Rst = buf.Pin("Q")
	} else {
		if m.Port("prog_rst") == nil {
			m.AddPort("prog_rst", 1, netlist.DirInput).WithClass(netlist.NetProg)
		}
		nets.Rst = m.PortRef("prog_rst")
	}

	if buf := m.Instance(netlist.NameKey(BufDoneL0Inst)); buf != nil {
		nets.Done = buf.Pin("Q")
	} else {
		if m.Port("prog_done") == nil {
			m.AddPort("prog_done", 1, netlist.DirInput).WithClass(netlist.NetProg)
		}
		nets.Done = m.PortRef("prog_done")
	}

	return nets
}
