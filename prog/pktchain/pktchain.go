// Package pktchain implements the packet-switched programming protocol:
// leaves are scan-chain segments behind routers, routers chain into
// branches behind dispatcher/gatherer pairs, and branches tie into the
// top-level packet network.
package pktchain

import (
	"fmt"
	"log"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
	"github.com/sarchlab/prism/prog/scanchain"
)

// EventKind discriminates the insertion-event stream.
type EventKind int

// Insertion events.
const (
	// EventInstance presents one instance to the insertion walk.
	EventInstance EventKind = iota

	// EventCloseLeaf flushes the accumulated scan-chain segments into a
	// router.
	EventCloseLeaf

	// EventCloseBranch flushes the accumulated routers into a
	// dispatcher/gatherer pair attached to the packet network.
	EventCloseBranch
)

// An InsertionEvent is one step of the iteration order driving pktchain
// insertion. Leaf and branch boundaries are explicit events rather than
// in-band markers.
type InsertionEvent struct {
	Kind     EventKind
	Instance *netlist.Instance

	// SubBranch selects which branch of a sub-array instance to splice in.
	// Negative means "the next unmapped one".
	SubBranch int
}

// An InstanceIterator supplies the event stream for one module.
type InstanceIterator func(m *netlist.Module) []InsertionEvent

// A BranchLeaf addresses one leaf scan chain by its position on the packet
// network.
type BranchLeaf struct {
	Branch int
	Leaf   int
}

// A Pktchain is the entry point for pktchain programming circuitry. Leaf
// chains are assembled by an embedded scanchain entry; the packet-network
// topology annotations live here.
type Pktchain struct {
	phitWidth     int
	fifoDepthLog2 int
	iter          InstanceIterator

	chain *scanchain.Scanchain

	// branches memoizes, per array key, the bit count of every leaf on
	// every branch the array exposes. An empty (non-nil) slice records an
	// array that reduced to a plain scan chain.
	branches map[netlist.ModuleKey][][]int

	// branchMap places an instance's leaves on the enclosing packet
	// network. Sub-array instances map each exposed sub-branch; leaf
	// instances hold a single entry. Branch -1 marks an unmapped slot.
	branchMap map[*netlist.Instance][]BranchLeaf
}

// A Builder can build Pktchain protocol entries.
type Builder struct {
	phitWidth     int
	chainWidth    int
	fifoDepthLog2 int
	delimiters    bool
	iter          InstanceIterator
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		phitWidth:     8,
		chainWidth:    1,
		fifoDepthLog2: 4,
		delimiters:    true,
	}
}

// WithPhitWidth sets the packet-network transfer unit width.
func (b Builder) WithPhitWidth(w int) Builder {
	b.phitWidth = w
	return b
}

// WithChainWidth sets the leaf scan-chain width.
func (b Builder) WithChainWidth(w int) Builder {
	b.chainWidth = w
	return b
}

// WithRouterFIFODepthLog2 sets the log2 depth of the router FIFOs.
func (b Builder) WithRouterFIFODepthLog2(d int) Builder {
	b.fifoDepthLog2 = d
	return b
}

// WithDelimiters controls delimiter insertion inside the leaf chains.
func (b Builder) WithDelimiters(enable bool) Builder {
	b.delimiters = enable
	return b
}

// WithInstanceIterator sets a custom insertion-event stream.
func (b Builder) WithInstanceIterator(iter InstanceIterator) Builder {
	b.iter = iter
	return b
}

// Build validates the parameters and creates the protocol entry.
func (b Builder) Build() *Pktchain {
	switch b.phitWidth {
	case 1, 2, 4, 8, 16, 32:
	default:
		panic(fmt.Sprintf(
			"unsupported phit width: %d (supported: 1, 2, 4, 8, 16, 32)",
			b.phitWidth))
	}

	switch b.chainWidth {
	case 1, 2, 4:
	default:
		panic(fmt.Sprintf(
			"unsupported chain width: %d (supported: 1, 2, 4)", b.chainWidth))
	}

	return &Pktchain{
		phitWidth:     b.phitWidth,
		fifoDepthLog2: b.fifoDepthLog2,
		iter:          b.iter,
		chain: scanchain.MakeBuilder().
			WithChainWidth(b.chainWidth).
			WithDelimiters(b.delimiters).
			Build(),
		branches:  make(map[netlist.ModuleKey][][]int),
		branchMap: make(map[*netlist.Instance][]BranchLeaf),
	}
}

// Kind returns prog.KindPktchain.
func (p *Pktchain) Kind() prog.Kind {
	return prog.KindPktchain
}

// PhitWidth returns the packet-network transfer unit width.
func (p *Pktchain) PhitWidth() int {
	return p.phitWidth
}

// ChainWidth returns the leaf scan-chain width.
func (p *Pktchain) ChainWidth() int {
	return p.chain.ChainWidth()
}

// Materialize installs the pktchain cells and the summary skeleton.
func (p *Pktchain) Materialize(ctx *arch.Context) error {
	prog.EnsureBufferCells(ctx.DB)
	scanchain.EnsureDelimCell(ctx.DB, p.ChainWidth())
	ensureNetworkCells(ctx.DB, p.ChainWidth(), p.phitWidth)

	ctx.Summary.ProgType = p.Kind().String()
	ctx.Summary.Pktchain = &arch.PktchainSummary{
		PhitWidth:           p.phitWidth,
		ChainWidth:          p.ChainWidth(),
		RouterFIFODepthLog2: p.fifoDepthLog2,
	}

	return nil
}

// InsertProgCircuitry buffers the control signals, injects the packet
// network and the leaf chains from the design-view top, verifies that all
// branches carry the same number of leaves, and installs the FASM delegate.
func (p *Pktchain) InsertProgCircuitry(ctx *arch.Context) error {
	prog.BufferProgCtrl(ctx)

	iter := p.iter
	if iter == nil {
		iter = DefaultIterator(ctx)
	}

	branches := p.insertPktchain(ctx, ctx.Top(netlist.ViewDesign), iter, false)

	leaves := len(branches[0])
	for i, branch := range branches[1:] {
		if len(branch) != leaves {
			panic(fmt.Sprintf(
				"unbalanced branch: branch %d has %d leaves but others have %d",
				i+1, len(branch), leaves))
		}
	}

	total := 0
	for _, branch := range branches {
		for _, bits := range branch {
			total += bits
		}
	}

	log.Printf("pktchain: %d branch(es) on primary backbone, %d leaf(s) per branch, %d bits total",
		len(branches), leaves, total)

	ctx.Summary.Pktchain.Branches = branches
	ctx.Summary.Pktchain.TotalBits = total
	ctx.FASM = &Delegate{pktchain: p}

	return nil
}

// Branches returns the branch/leaf topology an array exposes, or nil if
// the array reduced to a plain scan chain or was not processed.
func (p *Pktchain) Branches(key netlist.ModuleKey) [][]int {
	return p.branches[key]
}

// BranchMap returns the packet-network placement of an instance's leaves,
// or nil.
func (p *Pktchain) BranchMap(inst *netlist.Instance) []BranchLeaf {
	return p.branchMap[inst]
}

// Chain returns the embedded scanchain entry assembling the leaf chains.
func (p *Pktchain) Chain() *scanchain.Scanchain {
	return p.chain
}

// SetConnProgEnable attaches an explicit configuration-bit pattern to a
// programmable connection, overriding switch-path derivation.
func (p *Pktchain) SetConnProgEnable(
	conn *netlist.Connection,
	v *prog.DataValue,
) {
	p.chain.SetConnProgEnable(conn, v)
}

// RegisterPrimitiveParams declares the configuration parameters of a
// primitive model, placed relative to the primitive's own prog_data.
func (p *Pktchain) RegisterPrimitiveParams(
	key netlist.ModuleKey,
	params map[string]*prog.DataBitmap,
) {
	p.chain.RegisterPrimitiveParams(key, params)
}
