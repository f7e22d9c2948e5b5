package frame

import (
	"fmt"
	"log"
	"sort"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

// insertFrame walks the array/tile hierarchy top-down, sends blocks and
// routing boxes through leaf insertion, then composes each tile and array
// level after its children are complete.
func (f *Frame) insertFrame(ctx *arch.Context, dmod *netlist.Module) {
	if _, done := f.addrWidth[dmod.Key()]; done {
		return
	}

	for _, dinst := range dmod.Instances() {
		switch dinst.Model.Class() {
		case netlist.ClassProg:
			panic(fmt.Sprintf(
				"existing programming cell found during programming cell insertion: %v",
				dinst))
		case netlist.ClassAux:
			continue
		case netlist.ClassBlock, netlist.ClassSwitchBox,
			netlist.ClassConnectionBox:
			f.insertLeaf(ctx, dinst.Model, false)
		case netlist.ClassTile, netlist.ClassArray:
			f.insertFrame(ctx, dinst.Model)
		default:
			f.insertLeaf(ctx, dinst.Model, false)
		}
	}

	switch dmod.Class() {
	case netlist.ClassArray:
		f.composeArray(ctx, dmod)
	case netlist.ClassTile:
		f.composeTile(ctx, dmod)
	}
}

// composeTile packs the addressable children of a tile (subtile blocks and
// connection boxes) into one decoder tree without a request buffer.
func (f *Frame) composeTile(ctx *arch.Context, dmod *netlist.Module) {
	f.insertLeaf(ctx, dmod, true)
}

// insertLeaf inserts frame circuitry into one block, routing box, tile, or
// intermediate composite. notTop suppresses the request buffer and lets
// plain data bits escape through a prog_data port instead of an sram cell.
func (f *Frame) insertLeaf(ctx *arch.Context, dmod *netlist.Module, notTop bool) {
	if _, done := f.addrWidth[dmod.Key()]; done {
		return
	}

	switch dmod.Class() {
	case netlist.ClassPrimitive, netlist.ClassSwitch:
		return
	}

	log.Printf("frame: inserting programming circuitry into %v", dmod)

	var (
		ims []*netlist.Instance // own internal memory space (prog_addr)
		pds []*netlist.Instance // flat programming data only
		dos []*netlist.Instance // prog_done interface only
	)

	for _, dinst := range dmod.Instances() {
		switch dinst.Model.Class() {
		case netlist.ClassProg:
			panic(fmt.Sprintf(
				"existing programming cell found during programming cell insertion: %v",
				dinst))
		case netlist.ClassAux:
			continue
		}

		f.insertLeaf(ctx, dinst.Model, true)

		switch {
		case dinst.HasPin("prog_addr"):
			ims = append(ims, dinst)
		case dinst.HasPin("prog_data"):
			pds = append(pds, dinst)
		case dinst.HasPin("prog_done"):
			dos = append(dos, dinst)
		}
	}

	if len(ims) == 0 && len(pds) == 0 && len(dos) == 0 {
		f.addrWidth[dmod.Key()] = 0
		f.latency[dmod.Key()] = 0

		return
	}

	ctrl := prog.GetOrCreateCtrlNets(dmod)

	for _, dinst := range pds {
		prog.ConnectCtrl(dmod, ctrl, dinst)
	}
	for _, dinst := range dos {
		prog.ConnectCtrl(dmod, ctrl, dinst)
	}

	amod := ctx.DB.Get(netlist.ViewAbstract, dmod.Key())

	plainBits := 0
	for _, dinst := range pds {
		plainBits += dinst.Model.Port("prog_data").Width
	}

	var dataCell *netlist.Instance

	if plainBits > 0 {
		var progData netlist.NetRef

		if len(ims) > 0 || !notTop {
			dataCell = dmod.Instantiate(
				ensureDataCell(ctx.DB, f.wordWidth, plainBits),
				netlist.NameKey(dataCellInst))
			ims = append(ims, dataCell)
			progData = dataCell.Pin("prog_data_o")
		} else {
			// No address space needed here; expose the bits upward and let
			// an enclosing module aggregate them.
			dmod.AddPort("prog_data", plainBits, netlist.DirInput).
				WithClass(netlist.NetProg)
			progData = dmod.PortRef("prog_data")
		}

		offset := 0
		for _, dinst := range pds {
			pin := dinst.Pin("prog_data")
			dmod.Connect(progData.Slice(offset, offset+pin.Width()), pin)

			bm := prog.NewDataBitmap(
				prog.DataRange{Offset: offset, Length: pin.Width()})
			f.bitmap[dinst] = bm
			if amod != nil {
				if ainst := amod.Instance(dinst.Key); ainst != nil {
					f.bitmap[ainst] = bm
				}
			}

			offset += pin.Width()
		}
	}

	if len(ims) == 0 {
		f.addrWidth[dmod.Key()] = 0
		f.latency[dmod.Key()] = 0

		return
	}

	// Pack larger memory spaces at lower addresses.
	sort.SliceStable(ims, func(i, j int) bool {
		return ims[i].Model.Port("prog_addr").Width >
			ims[j].Model.Port("prog_addr").Width
	})

	tree := newTreeBranch(&treeLeaf{ims[0]}, nil)
	for _, dinst := range ims[1:] {
		tree.add(&treeLeaf{dinst})
	}

	nets := getOrCreateFrameNets(dmod, f.wordWidth, tree.addrWidth())
	nets.ctrl = ctrl

	maxChildLat := 0
	for _, dinst := range ims {
		if l := f.latency[dinst.Model.Key()]; l > maxChildLat {
			maxChildLat = l
		}
	}

	bufLat := 0
	if !notTop {
		f.insertRequestBuffer(ctx, dmod, &nets, tree.addrWidth())
		bufLat = 1
	}

	var em treeEmit
	readback, depth := f.buildTree(ctx, dmod, tree, nets, 0, &em)
	dmod.Connect(readback, nets.dout)

	for _, dinst := range ims {
		if dinst == dataCell {
			window := f.addrMap[dinst]
			for _, pd := range pds {
				f.addrMap[pd] = window
				if amod != nil {
					if ainst := amod.Instance(pd.Key); ainst != nil {
						f.addrMap[ainst] = window
					}
				}
			}
		} else if amod != nil {
			if ainst := amod.Instance(dinst.Key); ainst != nil {
				f.addrMap[ainst] = f.addrMap[dinst]
			}
		}
	}

	f.addrWidth[dmod.Key()] = tree.addrWidth()
	f.latency[dmod.Key()] = bufLat + depth + maxChildLat
}

// insertRequestBuffer steps the ce/we/addr/din bundle through one register
// stage and redirects nets at the buffered side.
func (f *Frame) insertRequestBuffer(
	ctx *arch.Context,
	dmod *netlist.Module,
	nets *frameNets,
	addrWidth int,
) {
	width := addrWidth + f.wordWidth + 2
	buf := dmod.Instantiate(ensureBufCell(ctx.DB, width),
		netlist.NameKey(rqbufInst))

	dmod.Connect(nets.ctrl.Clk, buf.Pin("prog_clk"))
	dmod.Connect(nets.ctrl.Rst, buf.Pin("prog_rst"))

	in := buf.Pin("i")
	dmod.Connect(nets.ce, in.Bit(0))
	dmod.Connect(nets.we, in.Bit(1))
	dmod.Connect(nets.addr, in.Slice(2, 2+addrWidth))
	dmod.Connect(nets.din, in.Slice(2+addrWidth, width))

	out := buf.Pin("o")
	nets.ce = out.Bit(0)
	nets.we = out.Bit(1)
	nets.addr = out.Slice(2, 2+addrWidth)
	nets.din = out.Slice(2+addrWidth, width)
}

type treeEmit struct {
	decoders int
	mergers  int
}

// buildTree walks the decoder tree, emitting one word-line decoder and, for
// fan-in, one registered read-back merger per internal node. It returns the
// node's read-back net and its merger register depth. Leaf instances are
// annotated with their absolute address window within dmod.
func (f *Frame) buildTree(
	ctx *arch.Context,
	dmod *netlist.Module,
	node treeNode,
	nets frameNets,
	base int,
	em *treeEmit,
) (netlist.NetRef, int) {
	if leaf, ok := node.(*treeLeaf); ok {
		f.addrMap[leaf.inst] = prog.NewDataBitmap(prog.DataRange{
			Offset: base,
			Length: 1 << leaf.addrWidth(),
		})

		prog.ConnectCtrl(dmod, nets.ctrl, leaf.inst)
		dmod.Connect(nets.ce, leaf.inst.Pin("prog_ce"))
		dmod.Connect(nets.we, leaf.inst.Pin("prog_we"))
		dmod.Connect(nets.addr, leaf.inst.Pin("prog_addr"))
		dmod.Connect(nets.din, leaf.inst.Pin("prog_din"))

		return leaf.inst.Pin("prog_dout"), 0
	}

	b := node.(*treeBranch)

	// The address budget of this node is granted by its parent; the root
	// answers for itself.
	addrWidth := b.addrWidth()
	if b.parent != nil {
		addrWidth = b.parent.childAddrWidth
	}

	var (
		readbacks []netlist.NetRef
		depth     int
	)

	if addrWidth > b.childAddrWidth {
		selWidth := addrWidth - b.childAddrWidth

		dec := dmod.Instantiate(
			ensureWldecCell(ctx.DB, selWidth, len(b.children)),
			netlist.NameKey(fmt.Sprintf("i_frame_wldec_i%d", em.decoders)))
		em.decoders++

		dmod.Connect(nets.ce, dec.Pin("ce_i"))
		dmod.Connect(nets.we, dec.Pin("we_i"))
		dmod.Connect(nets.addr.Slice(b.childAddrWidth, addrWidth),
			dec.Pin("addr_i"))

		for i, child := range b.children {
			cn := nets
			cn.addr = nets.addr.Slice(0, b.childAddrWidth)
			cn.ce = dec.Pin("ce_o").Bit(i)
			cn.we = dec.Pin("we_o").Bit(i)

			rb, d := f.buildTree(ctx, dmod, child, cn,
				base+i<<uint(b.childAddrWidth), em)
			readbacks = append(readbacks, rb)
			if d > depth {
				depth = d
			}
		}
	} else {
		rb, d := f.buildTree(ctx, dmod, b.children[0], nets, base, em)
		readbacks = append(readbacks, rb)
		depth = d
	}

	if len(readbacks) == 1 {
		return readbacks[0], depth
	}

	selWidth := addrWidth - b.childAddrWidth

	merger := dmod.Instantiate(
		ensureRbmergeCell(ctx.DB, f.wordWidth, selWidth, len(readbacks), 1),
		netlist.NameKey(fmt.Sprintf("i_frame_rbmerge_i%d", em.mergers)))
	em.mergers++

	dmod.Connect(nets.ctrl.Clk, merger.Pin("prog_clk"))
	dmod.Connect(nets.ctrl.Rst, merger.Pin("prog_rst"))
	dmod.Connect(nets.addr.Slice(b.childAddrWidth, addrWidth),
		merger.Pin("addr"))

	for i, rb := range readbacks {
		dmod.Connect(rb, merger.Pin(fmt.Sprintf("din%d", i)))
	}

	return merger.Pin("dout"), depth + 1
}
