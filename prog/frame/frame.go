// Package frame implements the memory-mapped programming protocol: every
// configuration consumer is reachable through a word-wide, directly
// addressed read/write interface composed through a decoder/merger tree.
package frame

import (
	"fmt"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

// A Frame is the entry point for frame programming circuitry. It owns the
// typed annotation tables written during insertion and read by the FASM
// delegate.
type Frame struct {
	wordWidth int

	// addrMap places an instance's word-address window inside its immediate
	// parent's address space. Both views' instances are keyed.
	addrMap map[*netlist.Instance]*prog.DataBitmap

	// bitmap places a plain consumer's bits inside the sram-data cell
	// aggregating its parent's flat configuration bits.
	bitmap map[*netlist.Instance]*prog.DataBitmap

	// addrWidth memoizes the exposed address width per module key. Zero
	// records "no programming bits anywhere in this subtree".
	addrWidth map[netlist.ModuleKey]int

	// latency memoizes the request-to-readback register depth per module.
	latency map[netlist.ModuleKey]int

	// dims records the x/y/tile address field split chosen per array level.
	dims map[netlist.ModuleKey]arrayDims

	connEnable map[*netlist.Connection]*prog.DataValue
	primParams map[netlist.ModuleKey]map[string]*prog.DataBitmap
}

// A Builder can build Frame protocol entries.
type Builder struct {
	wordWidth int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{wordWidth: 1}
}

// WithWordWidth sets the width of one addressed configuration word.
func (b Builder) WithWordWidth(w int) Builder {
	b.wordWidth = w
	return b
}

// Build validates the parameters and creates the protocol entry.
func (b Builder) Build() *Frame {
	if b.wordWidth <= 0 || b.wordWidth > 64 {
		panic(fmt.Sprintf("unsupported word width: %d", b.wordWidth))
	}

	return &Frame{
		wordWidth:  b.wordWidth,
		addrMap:    make(map[*netlist.Instance]*prog.DataBitmap),
		bitmap:     make(map[*netlist.Instance]*prog.DataBitmap),
		addrWidth:  make(map[netlist.ModuleKey]int),
		latency:    make(map[netlist.ModuleKey]int),
		dims:       make(map[netlist.ModuleKey]arrayDims),
		connEnable: make(map[*netlist.Connection]*prog.DataValue),
		primParams: make(map[netlist.ModuleKey]map[string]*prog.DataBitmap),
	}
}

// Kind returns prog.KindFrame.
func (f *Frame) Kind() prog.Kind {
	return prog.KindFrame
}

// WordWidth returns the width of one addressed configuration word.
func (f *Frame) WordWidth() int {
	return f.wordWidth
}

// Materialize installs the buffer cells and the summary skeleton.
func (f *Frame) Materialize(ctx *arch.Context) error {
	prog.EnsureBufferCells(ctx.DB)

	ctx.Summary.ProgType = f.Kind().String()
	ctx.Summary.Frame = &arch.FrameSummary{WordWidth: f.wordWidth}

	return nil
}

// InsertProgCircuitry buffers the control signals, inserts decoder trees
// bottom-up from the design-view top, installs the FASM delegate, and
// records the global address-width breakdown.
func (f *Frame) InsertProgCircuitry(ctx *arch.Context) error {
	prog.BufferProgCtrl(ctx)

	top := ctx.Top(netlist.ViewDesign)
	f.insertFrame(ctx, top)

	f.fillSummary(ctx, top)
	ctx.FASM = &Delegate{frame: f}

	return nil
}

// AddrMap returns the word-address window of an instance inside its
// parent's address space, or nil if the subtree holds no bits.
func (f *Frame) AddrMap(inst *netlist.Instance) *prog.DataBitmap {
	return f.addrMap[inst]
}

// Bitmap returns the bit placement of a plain consumer inside its parent's
// aggregated data cell, or nil.
func (f *Frame) Bitmap(inst *netlist.Instance) *prog.DataBitmap {
	return f.bitmap[inst]
}

// AddrWidth returns the exposed address width of a processed module. The
// second return value distinguishes "zero width" from "not processed".
func (f *Frame) AddrWidth(key netlist.ModuleKey) (int, bool) {
	w, ok := f.addrWidth[key]
	return w, ok
}

// SetConnProgEnable attaches an explicit configuration-bit pattern to a
// programmable connection, overriding switch-path derivation.
func (f *Frame) SetConnProgEnable(
	conn *netlist.Connection,
	v *prog.DataValue,
) {
	f.connEnable[conn] = v
}

// RegisterPrimitiveParams declares the configuration parameters of a
// primitive model, placed relative to the primitive's own prog_data.
func (f *Frame) RegisterPrimitiveParams(
	key netlist.ModuleKey,
	params map[string]*prog.DataBitmap,
) {
	f.primParams[key] = params
}

func (f *Frame) fillSummary(ctx *arch.Context, top *netlist.Module) {
	s := ctx.Summary.Frame
	s.Addr.Fabric = f.addrWidth[top.Key()]
	s.ReadbackLatency = f.latency[top.Key()]

	if d, ok := f.dims[top.Key()]; ok {
		s.Addr.X = d.x
		s.Addr.Y = d.y
		s.Addr.Tile = d.tile
	}

	for key, w := range f.addrWidth {
		dmod := ctx.DB.Get(netlist.ViewDesign, key)
		if dmod == nil {
			continue
		}

		switch dmod.Class() {
		case netlist.ClassBlock:
			if w > s.Addr.Block {
				s.Addr.Block = w
			}
		case netlist.ClassConnectionBox:
			if w > s.Addr.ConnectionBox {
				s.Addr.ConnectionBox = w
			}
		case netlist.ClassSwitchBox:
			if w > s.Addr.SwitchBox {
				s.Addr.SwitchBox = w
			}
		}
	}
}
