// Package scanchain implements the shift-register programming protocol:
// every configuration consumer is daisy-chained into one flat, serially
// shiftable chain per module, composed bottom-up through the hierarchy.
package scanchain

import (
	"fmt"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

// An InstanceIterator supplies the order in which a module's instances are
// chained. The default is instantiation order.
type InstanceIterator func(m *netlist.Module) []*netlist.Instance

// A Scanchain is the entry point for scanchain programming circuitry. It
// owns the typed annotation tables written during insertion and read by the
// FASM delegate.
type Scanchain struct {
	chainWidth int
	delimiters bool
	iter       InstanceIterator

	// bitcount memoizes the chain length per module key. A module with no
	// consumers records 0, distinguishing it from an unprocessed module.
	bitcount map[netlist.ModuleKey]int

	// instBitmap places an instance's bits inside its immediate parent's
	// chain. Both the design-view instance and its abstract twin are keyed.
	instBitmap map[*netlist.Instance]*prog.DataBitmap

	connEnable map[*netlist.Connection]*prog.DataValue
	primParams map[netlist.ModuleKey]map[string]*prog.DataBitmap
}

// A Builder can build Scanchain protocol entries.
type Builder struct {
	chainWidth int
	delimiters bool
	iter       InstanceIterator
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		chainWidth: 1,
		delimiters: true,
	}
}

// WithChainWidth sets the number of bits shifted per cycle.
func (b Builder) WithChainWidth(w int) Builder {
	b.chainWidth = w
	return b
}

// WithDelimiters controls the insertion of head/tail delimiter registers at
// block and routing-box boundaries.
func (b Builder) WithDelimiters(enable bool) Builder {
	b.delimiters = enable
	return b
}

// WithInstanceIterator sets a custom chaining order.
func (b Builder) WithInstanceIterator(iter InstanceIterator) Builder {
	b.iter = iter
	return b
}

// Build validates the parameters and creates the protocol entry.
func (b Builder) Build() *Scanchain {
	if b.chainWidth <= 0 {
		panic(fmt.Sprintf("unsupported chain width: %d", b.chainWidth))
	}

	iter := b.iter
	if iter == nil {
		iter = func(m *netlist.Module) []*netlist.Instance {
			return m.Instances()
		}
	}

	return &Scanchain{
		chainWidth: b.chainWidth,
		delimiters: b.delimiters,
		iter:       iter,
		bitcount:   make(map[netlist.ModuleKey]int),
		instBitmap: make(map[*netlist.Instance]*prog.DataBitmap),
		connEnable: make(map[*netlist.Connection]*prog.DataValue),
		primParams: make(map[netlist.ModuleKey]map[string]*prog.DataBitmap),
	}
}

// Kind returns prog.KindScanchain.
func (s *Scanchain) Kind() prog.Kind {
	return prog.KindScanchain
}

// ChainWidth returns the number of bits shifted per cycle.
func (s *Scanchain) ChainWidth() int {
	return s.chainWidth
}

// Materialize installs the scanchain cells and the summary skeleton.
func (s *Scanchain) Materialize(ctx *arch.Context) error {
	prog.EnsureBufferCells(ctx.DB)
	ensureDelimCell(ctx.DB, s.chainWidth)

	ctx.Summary.ProgType = s.Kind().String()
	ctx.Summary.Scanchain = &arch.ScanchainSummary{ChainWidth: s.chainWidth}

	return nil
}

// InsertProgCircuitry buffers the control signals, inserts the chain
// bottom-up from the design-view top, installs the FASM delegate, and
// records the bitstream size.
func (s *Scanchain) InsertProgCircuitry(ctx *arch.Context) error {
	prog.BufferProgCtrl(ctx)

	total := s.insertChain(ctx, ctx.Top(netlist.ViewDesign))

	ctx.Summary.Scanchain.BitstreamSize = total
	ctx.FASM = &Delegate{chain: s}

	return nil
}

// InsertChain inserts the chain into one module and returns its bit count,
// reusing the memoized result when the module was already processed. It is
// the entry point for protocols embedding scanchain segments.
func (s *Scanchain) InsertChain(ctx *arch.Context, dmod *netlist.Module) int {
	if n, ok := s.bitcount[dmod.Key()]; ok {
		return n
	}

	return s.insertChain(ctx, dmod)
}

// Bitcount returns the chain length of a processed module. The second
// return value distinguishes "zero bits" from "not processed".
func (s *Scanchain) Bitcount(key netlist.ModuleKey) (int, bool) {
	n, ok := s.bitcount[key]
	return n, ok
}

// RecordBitcount records the chain length of a module whose chain was
// assembled by an embedding protocol rather than by InsertChain.
func (s *Scanchain) RecordBitcount(key netlist.ModuleKey, n int) {
	s.bitcount[key] = n
}

// RecordInstanceBitmap records the placement of an instance's bits inside a
// chain assembled by an embedding protocol.
func (s *Scanchain) RecordInstanceBitmap(
	inst *netlist.Instance,
	bm *prog.DataBitmap,
) {
	s.instBitmap[inst] = bm
}

// ConnProgEnable returns the explicit enable pattern registered for a
// connection, or nil.
func (s *Scanchain) ConnProgEnable(
	conn *netlist.Connection,
) *prog.DataValue {
	return s.connEnable[conn]
}

// PrimitiveParams returns the registered configuration parameters of a
// primitive model, or nil.
func (s *Scanchain) PrimitiveParams(
	key netlist.ModuleKey,
) map[string]*prog.DataBitmap {
	return s.primParams[key]
}

// InstanceBitmap returns the bitmap placing an instance's bits inside its
// parent's chain, or nil if the instance consumes no bits.
func (s *Scanchain) InstanceBitmap(inst *netlist.Instance) *prog.DataBitmap {
	return s.instBitmap[inst]
}

// SetConnProgEnable attaches an explicit configuration-bit pattern to a
// programmable connection, overriding switch-path derivation.
func (s *Scanchain) SetConnProgEnable(
	conn *netlist.Connection,
	v *prog.DataValue,
) {
	s.connEnable[conn] = v
}

// RegisterPrimitiveParams declares the configuration parameters of a
// primitive model, placed relative to the primitive's own prog_data.
func (s *Scanchain) RegisterPrimitiveParams(
	key netlist.ModuleKey,
	params map[string]*prog.DataBitmap,
) {
	s.primParams[key] = params
}
