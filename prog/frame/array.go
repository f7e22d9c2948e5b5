package frame

import (
	"fmt"
	"log"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

// arrayDims records the address field widths chosen for one array level.
type arrayDims struct {
	x, y, tile int
}

// composeArray wires the addressable children of an array behind an X/Y
// coordinate decode. The global address at this level is laid out as
// x ++ y ++ tile-local, where the tile field carries a type-selector prefix
// distinguishing children sharing one grid coordinate (tile vs corner
// switch box). Read-back merges per column first, then across columns.
func (f *Frame) composeArray(ctx *arch.Context, dmod *netlist.Module) {
	type gridChild struct {
		inst *netlist.Instance
		x, y int
		sel  int
	}

	var (
		children []gridChild
		w, h     int
		maxGroup int
		maxChild int
	)

	groupSizes := make(map[[2]int]int)

	for _, inst := range dmod.Instances() {
		if inst.Model.Class() == netlist.ClassAux {
			continue
		}

		switch inst.Key.Kind {
		case netlist.KeyGrid, netlist.KeyCorner:
		default:
			if inst.HasPin("prog_addr") || inst.HasPin("prog_data") {
				log.Printf("frame: %v is not grid-addressable; skipped", inst)
			}
			continue
		}

		if inst.Key.X+1 > w {
			w = inst.Key.X + 1
		}
		if inst.Key.Y+1 > h {
			h = inst.Key.Y + 1
		}

		if !inst.HasPin("prog_addr") {
			continue
		}

		pos := [2]int{inst.Key.X, inst.Key.Y}
		children = append(children, gridChild{
			inst: inst,
			x:    inst.Key.X,
			y:    inst.Key.Y,
			sel:  groupSizes[pos],
		})
		groupSizes[pos]++

		if groupSizes[pos] > maxGroup {
			maxGroup = groupSizes[pos]
		}
		if cw := inst.Model.Port("prog_addr").Width; cw > maxChild {
			maxChild = cw
		}
	}

	if len(children) == 0 {
		f.addrWidth[dmod.Key()] = 0
		f.latency[dmod.Key()] = 0

		return
	}

	selWidth := prog.CeilLog2(maxGroup)
	tileWidth := maxChild + selWidth
	xWidth := prog.CeilLog2(w)
	yWidth := prog.CeilLog2(h)
	totalWidth := xWidth + yWidth + tileWidth

	f.dims[dmod.Key()] = arrayDims{x: xWidth, y: yWidth, tile: tileWidth}

	ctrl := prog.GetOrCreateCtrlNets(dmod)
	nets := getOrCreateFrameNets(dmod, f.wordWidth, totalWidth)
	nets.ctrl = ctrl

	maxChildLat := 0
	for _, c := range children {
		if l := f.latency[c.inst.Model.Key()]; l > maxChildLat {
			maxChildLat = l
		}
	}

	f.insertRequestBuffer(ctx, dmod, &nets, totalWidth)

	// X decode fans the request out per column.
	colCE := make([]netlist.NetRef, w)
	colWE := make([]netlist.NetRef, w)

	if xWidth > 0 {
		xdec := dmod.Instantiate(ensureWldecCell(ctx.DB, xWidth, w),
			netlist.NameKey("i_frame_xdec"))
		dmod.Connect(nets.ce, xdec.Pin("ce_i"))
		dmod.Connect(nets.we, xdec.Pin("we_i"))
		dmod.Connect(nets.addr.Slice(tileWidth+yWidth, totalWidth),
			xdec.Pin("addr_i"))

		for x := 0; x < w; x++ {
			colCE[x] = xdec.Pin("ce_o").Bit(x)
			colWE[x] = xdec.Pin("we_o").Bit(x)
		}
	} else {
		colCE[0] = nets.ce
		colWE[0] = nets.we
	}

	// Per column: Y decode plus, where tiles and corner boxes share a
	// coordinate, a selector decode.
	cellCE := make(map[*netlist.Instance]netlist.NetRef)
	cellWE := make(map[*netlist.Instance]netlist.NetRef)

	for x := 0; x < w; x++ {
		rowCE := make([]netlist.NetRef, h)
		rowWE := make([]netlist.NetRef, h)

		if yWidth > 0 {
			ydec := dmod.Instantiate(ensureWldecCell(ctx.DB, yWidth, h),
				netlist.NameKey(keyf("i_frame_ydec_x%d", x)))
			dmod.Connect(colCE[x], ydec.Pin("ce_i"))
			dmod.Connect(colWE[x], ydec.Pin("we_i"))
			dmod.Connect(nets.addr.Slice(tileWidth, tileWidth+yWidth),
				ydec.Pin("addr_i"))

			for y := 0; y < h; y++ {
				rowCE[y] = ydec.Pin("ce_o").Bit(y)
				rowWE[y] = ydec.Pin("we_o").Bit(y)
			}
		} else {
			rowCE[0] = colCE[x]
			rowWE[0] = colWE[x]
		}

		for y := 0; y < h; y++ {
			n := 0
			for _, c := range children {
				if c.x == x && c.y == y {
					n++
				}
			}
			if n == 0 {
				continue
			}

			ce, we := rowCE[y], rowWE[y]

			if selWidth > 0 && n > 1 {
				sdec := dmod.Instantiate(ensureWldecCell(ctx.DB, selWidth, n),
					netlist.NameKey(keyf("i_frame_seldec_x%d_y%d", x, y)))
				dmod.Connect(ce, sdec.Pin("ce_i"))
				dmod.Connect(we, sdec.Pin("we_i"))
				dmod.Connect(nets.addr.Slice(maxChild, tileWidth),
					sdec.Pin("addr_i"))

				for _, c := range children {
					if c.x == x && c.y == y {
						cellCE[c.inst] = sdec.Pin("ce_o").Bit(c.sel)
						cellWE[c.inst] = sdec.Pin("we_o").Bit(c.sel)
					}
				}
			} else {
				for _, c := range children {
					if c.x == x && c.y == y {
						cellCE[c.inst] = ce
						cellWE[c.inst] = we
					}
				}
			}
		}
	}

	// Connect every child and annotate its absolute address window.
	amod := ctx.DB.Get(netlist.ViewAbstract, dmod.Key())

	for _, c := range children {
		childWidth := c.inst.Model.Port("prog_addr").Width

		ce := cellCE[c.inst]
		we := cellWE[c.inst]
		addr := nets.addr.Slice(0, childWidth)
		din := nets.din

		// Shallower children pass through one extra stage per level below
		// the deepest sibling, keeping the request depth uniform.
		width := childWidth + f.wordWidth + 2
		for s := f.latency[c.inst.Model.Key()]; s < maxChildLat; s++ {
			buf := dmod.Instantiate(ensureBufCell(ctx.DB, width),
				netlist.NameKey(keyf("i_frame_lvlbuf_%v_s%d", c.inst.Key, s)))
			dmod.Connect(ctrl.Clk, buf.Pin("prog_clk"))
			dmod.Connect(ctrl.Rst, buf.Pin("prog_rst"))

			in := buf.Pin("i")
			dmod.Connect(ce, in.Bit(0))
			dmod.Connect(we, in.Bit(1))
			dmod.Connect(addr, in.Slice(2, 2+childWidth))
			dmod.Connect(din, in.Slice(2+childWidth, width))

			out := buf.Pin("o")
			ce = out.Bit(0)
			we = out.Bit(1)
			addr = out.Slice(2, 2+childWidth)
			din = out.Slice(2+childWidth, width)
		}

		prog.ConnectCtrl(dmod, ctrl, c.inst)
		dmod.Connect(ce, c.inst.Pin("prog_ce"))
		dmod.Connect(we, c.inst.Pin("prog_we"))
		dmod.Connect(addr, c.inst.Pin("prog_addr"))
		dmod.Connect(din, c.inst.Pin("prog_din"))

		base := c.x<<uint(tileWidth+yWidth) |
			c.y<<uint(tileWidth) |
			c.sel<<uint(maxChild)
		bm := prog.NewDataBitmap(prog.DataRange{
			Offset: base,
			Length: 1 << uint(childWidth),
		})

		f.addrMap[c.inst] = bm
		if amod != nil {
			if ainst := amod.Instance(c.inst.Key); ainst != nil {
				f.addrMap[ainst] = bm
			}
		}
	}

	// Read-back: merge within each column, then across columns.
	mergeLat := 0
	var colOuts []netlist.NetRef

	for x := 0; x < w; x++ {
		var (
			srcs []netlist.NetRef
		)
		for _, c := range children {
			if c.x == x {
				srcs = append(srcs, c.inst.Pin("prog_dout"))
			}
		}

		switch len(srcs) {
		case 0:
		case 1:
			colOuts = append(colOuts, srcs[0])
		default:
			mg := dmod.Instantiate(
				ensureRbmergeCell(ctx.DB, f.wordWidth, yWidth+selWidth,
					len(srcs), 1),
				netlist.NameKey(keyf("i_frame_colmerge_x%d", x)))
			dmod.Connect(ctrl.Clk, mg.Pin("prog_clk"))
			dmod.Connect(ctrl.Rst, mg.Pin("prog_rst"))
			dmod.Connect(nets.addr.Slice(maxChild, tileWidth+yWidth),
				mg.Pin("addr"))

			for i, src := range srcs {
				dmod.Connect(src, mg.Pin(keyf("din%d", i)))
			}

			colOuts = append(colOuts, mg.Pin("dout"))
			mergeLat = 1
		}
	}

	var readback netlist.NetRef

	switch len(colOuts) {
	case 1:
		readback = colOuts[0]
	default:
		mg := dmod.Instantiate(
			ensureRbmergeCell(ctx.DB, f.wordWidth, xWidth, len(colOuts), 1),
			netlist.NameKey("i_frame_rowmerge"))
		dmod.Connect(ctrl.Clk, mg.Pin("prog_clk"))
		dmod.Connect(ctrl.Rst, mg.Pin("prog_rst"))
		dmod.Connect(nets.addr.Slice(tileWidth+yWidth, totalWidth),
			mg.Pin("addr"))

		for i, src := range colOuts {
			dmod.Connect(src, mg.Pin(keyf("din%d", i)))
		}

		readback = mg.Pin("dout")
		mergeLat++
	}

	dmod.Connect(readback, nets.dout)

	f.addrWidth[dmod.Key()] = totalWidth
	f.latency[dmod.Key()] = 1 + maxChildLat + mergeLat

	log.Printf("frame: composed %v: addr width %d (x %d, y %d, tile %d)",
		dmod, totalWidth, xWidth, yWidth, tileWidth)
}

func keyf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
