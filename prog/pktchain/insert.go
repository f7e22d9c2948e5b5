package pktchain

import (
	"fmt"
	"log"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
	"github.com/sarchlab/prism/prog/scanchain"
)

// leafState is the scan chain of the leaf under construction, waiting for
// its router.
type leafState struct {
	active bool
	ctrl   prog.CtrlNets

	// weSinks collects prog_we pins that the leaf's router will drive once
	// it exists. weO rolls forward as segments re-time the enable.
	weSinks []netlist.NetRef
	weO     netlist.NetRef

	// din is the head of the chain, driven by the router's prog_dout; dout
	// is the rolling tail.
	din  netlist.NetRef
	dout netlist.NetRef
}

// walker is the per-module state of one pktchain insertion walk.
type walker struct {
	p    *Pktchain
	ctx  *arch.Context
	dmod *netlist.Module
	amod *netlist.Module
	iter InstanceIterator

	dispatcher *netlist.Instance
	gatherer   *netlist.Instance

	branches   [][]int
	branchNets phitNets
	leaves     []int
	leaf       leafState
	offset     int
}

// insertPktchain injects the packet network and the leaf chains into dmod,
// recursing bottom-up through sub-arrays. It returns the per-branch leaf
// bit counts dmod exposes; an empty result means dmod reduced to a plain
// scan chain.
func (p *Pktchain) insertPktchain(
	ctx *arch.Context,
	dmod *netlist.Module,
	iter InstanceIterator,
	notTop bool,
) [][]int {
	if dmod.Class() != netlist.ClassArray {
		panic(fmt.Sprintf("%v is not an Array", dmod))
	}

	w := &walker{
		p:          p,
		ctx:        ctx,
		dmod:       dmod,
		amod:       ctx.DB.Get(netlist.ViewAbstract, dmod.Key()),
		iter:       iter,
		branchNets: make(phitNets),
	}

	for _, ev := range iter(dmod) {
		switch ev.Kind {
		case EventCloseLeaf:
			w.closeLeaf()
		case EventCloseBranch:
			w.closeBranch(notTop)
		case EventInstance:
			w.instance(ev)
		}
	}

	// Trailing leaves without an explicit branch terminator.
	if len(w.leaves) > 0 {
		w.closeBranch(notTop)
	}

	switch {
	case len(w.branches) > 0:
		if w.leaf.active || w.offset > 0 {
			panic(fmt.Sprintf(
				"unterminated leaf after end of instance traversal in %v", dmod))
		}

		p.branches[dmod.Key()] = w.branches

	case w.leaf.active:
		// No router was requested: the array degenerates to a plain scan
		// chain spliced into an enclosing leaf.
		ports := scanchain.GetOrCreateChainPorts(dmod, p.ChainWidth())

		for _, sink := range w.leaf.weSinks {
			dmod.Connect(ports.WE, sink)
		}

		dmod.Connect(ports.Din, w.leaf.din)
		dmod.Connect(w.leaf.dout, ports.Dout)

		if !w.leaf.weO.IsNil() {
			if dmod.Port("prog_we_o") == nil {
				dmod.AddPort("prog_we_o", 1, netlist.DirOutput).
					WithClass(netlist.NetProg)
			}
			dmod.Connect(w.leaf.weO, dmod.PortRef("prog_we_o"))
		}

		p.chain.RecordBitcount(dmod.Key(), w.offset)
		log.Printf("pktchain: %v reduced to a scan chain, %d bits",
			dmod, w.offset)

	default:
		log.Printf("pktchain: no programming data needed in array %v", dmod)
		p.chain.RecordBitcount(dmod.Key(), 0)
	}

	if !notTop {
		if w.dispatcher == nil {
			panic(fmt.Sprintf("no branch attached to the top-level array %v",
				dmod))
		}

		// Terminate the primary backbone.
		dmod.Connect(netlist.ConstRef(1, 1), w.dispatcher.Pin("phit_ox_full"))
		dmod.Connect(netlist.ConstRef(0, 1), w.gatherer.Pin("phit_ix_wr"))
	}

	return w.branches
}

// instance dispatches one instance event: tiles and boxes extend the open
// leaf chain, sub-arrays either splice their branches into the network or
// join the leaf as a plain chain.
func (w *walker) instance(ev InsertionEvent) {
	dinst := ev.Instance

	switch dinst.Model.Class() {
	case netlist.ClassProg:
		panic(fmt.Sprintf(
			"existing programming cell found during programming cell insertion: %v",
			dinst))
	case netlist.ClassAux:
		return
	}

	if dinst.Model.Class() != netlist.ClassArray {
		w.offset += w.insertLeafSegment(dinst)
		return
	}

	subBranches := w.p.branches[dinst.Model.Key()]
	if subBranches == nil {
		if _, done := w.p.chain.Bitcount(dinst.Model.Key()); !done {
			subBranches = w.p.insertPktchain(w.ctx, dinst.Model, w.iter, true)
		}
	}

	if len(subBranches) == 0 {
		w.spliceChainArray(dinst)
		return
	}

	w.spliceSubBranch(dinst, subBranches, ev.SubBranch)
}

// insertLeafSegment chains one non-array instance onto the open leaf and
// returns its bit count.
func (w *walker) insertLeafSegment(dinst *netlist.Instance) int {
	segment := dinst
	bits := 0

	if !dinst.HasPin("prog_data") {
		bits = w.p.chain.InsertChain(w.ctx, dinst.Model)
		if bits == 0 {
			return 0
		}
	} else {
		width := dinst.Model.Port("prog_data").Width
		cell := scanchain.EnsureDataCell(w.ctx.DB, w.p.ChainWidth(), width)
		segment = w.dmod.Instantiate(cell,
			netlist.NameKey(fmt.Sprintf("i_prog_data_%v", dinst.Key)))
		w.dmod.Connect(segment.Pin("prog_data"), dinst.Pin("prog_data"))
		bits = width
	}

	w.connectLeaf(segment)
	w.annotateLeafMember(dinst, bits)

	return bits
}

// spliceChainArray joins a sub-array that reduced to a plain scan chain
// onto the open leaf.
func (w *walker) spliceChainArray(dinst *netlist.Instance) {
	bits, _ := w.p.chain.Bitcount(dinst.Model.Key())
	if bits == 0 {
		return
	}

	w.connectLeaf(dinst)
	w.annotateLeafMember(dinst, bits)
	w.offset += bits
}

// annotateLeafMember places an instance's bits inside the open leaf and on
// the packet network, mirrored to the abstract twin.
func (w *walker) annotateLeafMember(dinst *netlist.Instance, bits int) {
	bm := prog.NewDataBitmap(prog.DataRange{Offset: w.offset, Length: bits})
	placement := []BranchLeaf{{Branch: len(w.branches), Leaf: len(w.leaves)}}

	w.p.chain.RecordInstanceBitmap(dinst, bm)
	w.p.branchMap[dinst] = placement

	if w.amod != nil {
		if ainst := w.amod.Instance(dinst.Key); ainst != nil {
			w.p.chain.RecordInstanceBitmap(ainst, bm)
			w.p.branchMap[ainst] = placement
		}
	}
}

// spliceSubBranch attaches one exposed branch of a sub-array to the branch
// under construction.
func (w *walker) spliceSubBranch(
	dinst *netlist.Instance,
	subBranches [][]int,
	subID int,
) {
	if w.offset > 0 || w.leaf.active {
		panic(fmt.Sprintf(
			"unterminated leaf before merging sub-branches in %v", dinst))
	}

	if subID < 0 {
		subID = len(w.p.branchMap[dinst])
	}

	if subID >= len(subBranches) {
		panic(fmt.Sprintf("%v does not have branch No. %d", dinst.Model, subID))
	}

	branchmap := w.p.branchMap[dinst]
	for len(branchmap) <= subID {
		branchmap = append(branchmap, BranchLeaf{Branch: -1, Leaf: -1})
	}
	branchmap[subID] = BranchLeaf{Branch: len(w.branches), Leaf: len(w.leaves)}

	w.p.branchMap[dinst] = branchmap
	if w.amod != nil {
		if ainst := w.amod.Instance(dinst.Key); ainst != nil {
			w.p.branchMap[ainst] = branchmap
		}
	}

	log.Printf("pktchain: splicing %d leaf(s) from %v into branch %d of %v",
		len(subBranches[subID]), dinst, len(w.branches), w.dmod)

	w.leaves = append(w.leaves, subBranches[subID]...)

	pin := func(kind string) netlist.NetRef {
		return dinst.Pin(phitPortName(kind, subID))
	}

	if o, chained := w.branchNets["o"]; chained {
		w.dmod.Connect(o, pin("i"))
		w.dmod.Connect(w.branchNets["o_wr"], pin("i_wr"))
		w.dmod.Connect(pin("i_full"), w.branchNets["o_full"])
	} else {
		for _, kind := range []string{"i", "i_wr", "i_full"} {
			w.branchNets[kind] = pin(kind)
		}
	}

	for _, kind := range []string{"o", "o_wr", "o_full"} {
		w.branchNets[kind] = pin(kind)
	}
}

// connectLeaf daisy-chains one segment onto the open leaf.
func (w *walker) connectLeaf(segment *netlist.Instance) {
	if !w.leaf.active {
		ports := scanchain.GetOrCreateChainPorts(w.dmod, w.p.ChainWidth(),
			"prog_we", "prog_din", "prog_dout")
		w.leaf = leafState{active: true, ctrl: ports.Ctrl}
	}

	prog.ConnectCtrl(w.dmod, w.leaf.ctrl, segment)

	if w.leaf.weO.IsNil() {
		w.leaf.weSinks = append(w.leaf.weSinks, segment.Pin("prog_we"))
	} else {
		w.dmod.Connect(w.leaf.weO, segment.Pin("prog_we"))
	}
	if segment.HasPin("prog_we_o") {
		w.leaf.weO = segment.Pin("prog_we_o")
	}

	if w.leaf.dout.IsNil() {
		w.leaf.din = segment.Pin("prog_din")
	} else {
		w.dmod.Connect(w.leaf.dout, segment.Pin("prog_din"))
	}
	w.leaf.dout = segment.Pin("prog_dout")
}

// closeLeaf wraps the open leaf chain behind a router and chains the router
// onto the branch under construction.
func (w *walker) closeLeaf() {
	router := w.dmod.Instantiate(
		w.ctx.DB.MustGet(netlist.ViewDesign, RouterCellName),
		netlist.NameKey(fmt.Sprintf("i_prog_router_b%dl%d",
			len(w.branches), len(w.leaves))))

	ctrl := prog.GetOrCreateCtrlNets(w.dmod)
	w.dmod.Connect(ctrl.Clk, router.Pin("prog_clk"))
	w.dmod.Connect(ctrl.Rst, router.Pin("prog_rst"))

	// Close the scan loop through the router; an empty leaf loops the
	// router back on itself.
	if w.leaf.active && !w.leaf.dout.IsNil() {
		w.dmod.Connect(w.leaf.dout, router.Pin("prog_din"))
		w.dmod.Connect(router.Pin("prog_dout"), w.leaf.din)
	} else {
		w.dmod.Connect(router.Pin("prog_dout"), router.Pin("prog_din"))
	}

	weSrc := w.leaf.weO
	if weSrc.IsNil() {
		weSrc = router.Pin("prog_we_o")
	}
	w.dmod.Connect(weSrc, router.Pin("prog_we"))

	for _, sink := range w.leaf.weSinks {
		w.dmod.Connect(router.Pin("prog_we_o"), sink)
	}

	// Chain the router onto the branch.
	if o, chained := w.branchNets["o"]; chained {
		w.dmod.Connect(o, router.Pin("phit_i"))
		w.dmod.Connect(w.branchNets["o_wr"], router.Pin("phit_i_wr"))
		w.dmod.Connect(router.Pin("phit_i_full"), w.branchNets["o_full"])
	} else {
		for _, kind := range []string{"i", "i_wr", "i_full"} {
			w.branchNets[kind] = router.Pin(phitPortName(kind, -1))
		}
	}

	for _, kind := range []string{"o", "o_wr", "o_full"} {
		w.branchNets[kind] = router.Pin(phitPortName(kind, -1))
	}

	log.Printf("pktchain: wrapped leaf %d of branch %d in %v, %d bits",
		len(w.leaves), len(w.branches), w.dmod, w.offset)

	w.leaves = append(w.leaves, w.offset)
	w.leaf = leafState{}
	w.offset = 0
}

// closeBranch terminates the branch under construction: below the top it is
// exposed through branch-suffixed phit ports, at the top it is attached to
// the primary backbone behind a fresh dispatcher/gatherer pair.
func (w *walker) closeBranch(notTop bool) {
	if len(w.leaves) == 0 && len(w.branchNets) == 0 {
		return
	}

	if notTop {
		ports := getOrCreatePhitNets(w.dmod, w.p.phitWidth, len(w.branches),
			false, false)

		for _, kind := range []string{"i", "i_wr", "o_full"} {
			w.dmod.Connect(ports[kind], w.branchNets[kind])
		}
		for _, kind := range []string{"o", "o_wr", "i_full"} {
			w.dmod.Connect(w.branchNets[kind], ports[kind])
		}
	} else {
		w.attachBranchToBackbone()
	}

	w.branches = append(w.branches, w.leaves)
	w.leaves = nil
	w.branchNets = make(phitNets)
}

// attachBranchToBackbone creates the dispatcher/gatherer pair of one branch
// and chains it onto the previous pair, or onto the module-level phit ports
// for the first branch.
func (w *walker) attachBranchToBackbone() {
	dispatcher := w.dmod.Instantiate(
		w.ctx.DB.MustGet(netlist.ViewDesign, DispatcherCellName),
		netlist.NameKey(fmt.Sprintf("i_prog_dispatcher_b%d", len(w.branches))))
	gatherer := w.dmod.Instantiate(
		w.ctx.DB.MustGet(netlist.ViewDesign, GathererCellName),
		netlist.NameKey(fmt.Sprintf("i_prog_gatherer_b%d", len(w.branches))))

	ctrl := prog.GetOrCreateCtrlNets(w.dmod)
	for _, inst := range []*netlist.Instance{dispatcher, gatherer} {
		w.dmod.Connect(ctrl.Clk, inst.Pin("prog_clk"))
		w.dmod.Connect(ctrl.Rst, inst.Pin("prog_rst"))
	}

	var backbone phitNets
	if w.dispatcher == nil {
		backbone = getOrCreatePhitNets(w.dmod, w.p.phitWidth, -1, false, false)
	} else {
		backbone = phitNets{
			"i":      w.dispatcher.Pin("phit_ox"),
			"i_wr":   w.dispatcher.Pin("phit_ox_wr"),
			"i_full": w.dispatcher.Pin("phit_ox_full"),
			"o":      w.gatherer.Pin("phit_ix"),
			"o_wr":   w.gatherer.Pin("phit_ix_wr"),
			"o_full": w.gatherer.Pin("phit_ix_full"),
		}
	}

	w.dmod.Connect(backbone["i"], dispatcher.Pin("phit_i"))
	w.dmod.Connect(backbone["i_wr"], dispatcher.Pin("phit_i_wr"))
	w.dmod.Connect(dispatcher.Pin("phit_i_full"), backbone["i_full"])
	w.dmod.Connect(backbone["o_full"], gatherer.Pin("phit_o_full"))
	w.dmod.Connect(gatherer.Pin("phit_o"), backbone["o"])
	w.dmod.Connect(gatherer.Pin("phit_o_wr"), backbone["o_wr"])

	w.dmod.Connect(dispatcher.Pin("phit_oy"), w.branchNets["i"])
	w.dmod.Connect(dispatcher.Pin("phit_oy_wr"), w.branchNets["i_wr"])
	w.dmod.Connect(w.branchNets["i_full"], dispatcher.Pin("phit_oy_full"))
	w.dmod.Connect(gatherer.Pin("phit_iy_full"), w.branchNets["o_full"])
	w.dmod.Connect(w.branchNets["o"], gatherer.Pin("phit_iy"))
	w.dmod.Connect(w.branchNets["o_wr"], gatherer.Pin("phit_iy_wr"))

	w.dispatcher = dispatcher
	w.gatherer = gatherer

	log.Printf("pktchain: attached branch %d (%d leaves) to the backbone of %v",
		len(w.branches), len(w.leaves), w.dmod)
}
