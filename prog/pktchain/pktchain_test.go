package pktchain_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/prism/annotation"
	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/fabrics"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog/pktchain"
)

func insertPktchain(
	b fabrics.Builder,
	p *pktchain.Pktchain,
) *arch.Context {
	ctx := b.Build("demo")

	Expect(annotation.SwitchPathPass{}.Run(ctx)).To(Succeed())
	Expect(p.Materialize(ctx)).To(Succeed())
	Expect(p.InsertProgCircuitry(ctx)).To(Succeed())

	return ctx
}

var _ = Describe("Pktchain", func() {
	var (
		p   *pktchain.Pktchain
		ctx *arch.Context
	)

	BeforeEach(func() {
		p = pktchain.MakeBuilder().Build()
		ctx = insertPktchain(fabrics.MakeBuilder(), p)
	})

	It("should carry the network parameters in the summary", func() {
		s := ctx.Summary.Pktchain

		Expect(ctx.Summary.ProgType).To(Equal("pktchain"))
		Expect(s.PhitWidth).To(Equal(8))
		Expect(s.ChainWidth).To(Equal(1))
		Expect(s.RouterFIFODepthLog2).To(Equal(4))
	})

	It("should build one branch per column, one leaf per cell", func() {
		// Each leaf wraps the column's switch box (32 bits) and tile (32
		// bits) at one grid cell.
		Expect(p.Branches(fabrics.TopKey)).To(Equal([][]int{
			{64, 64},
			{64, 64},
		}))

		Expect(ctx.Summary.Pktchain.Branches).To(Equal(p.Branches(fabrics.TopKey)))
		Expect(ctx.Summary.Pktchain.TotalBits).To(Equal(256))
	})

	It("should wrap every leaf behind a router", func() {
		top := ctx.Top(netlist.ViewDesign)

		for _, name := range []string{
			"i_prog_router_b0l0", "i_prog_router_b0l1",
			"i_prog_router_b1l0", "i_prog_router_b1l1",
		} {
			Expect(top.Instance(netlist.NameKey(name))).ToNot(BeNil(), name)
		}
	})

	It("should attach each branch to the backbone", func() {
		top := ctx.Top(netlist.ViewDesign)

		for _, name := range []string{
			"i_prog_dispatcher_b0", "i_prog_dispatcher_b1",
			"i_prog_gatherer_b0", "i_prog_gatherer_b1",
		} {
			Expect(top.Instance(netlist.NameKey(name))).ToNot(BeNil(), name)
		}

		// The last pair terminates the primary backbone.
		d1 := top.Instance(netlist.NameKey("i_prog_dispatcher_b1"))
		Expect(top.SourceOf(d1.Pin("phit_ox_full"))).ToNot(BeNil())
	})

	It("should expose one phit channel pair at the top", func() {
		top := ctx.Top(netlist.ViewDesign)

		Expect(top.Port("phit_i").Width).To(Equal(8))
		Expect(top.Port("phit_i").Direction).To(Equal(netlist.DirInput))
		Expect(top.Port("phit_i_wr")).ToNot(BeNil())
		Expect(top.Port("phit_i_full")).ToNot(BeNil())

		Expect(top.Port("phit_o").Width).To(Equal(8))
		Expect(top.Port("phit_o").Direction).To(Equal(netlist.DirOutput))
		Expect(top.SourceOf(top.PortRef("phit_o"))).ToNot(BeNil())
	})

	It("should place each leaf member on the packet network", func() {
		top := ctx.Top(netlist.ViewDesign)

		Expect(p.BranchMap(top.Instance(netlist.GridKey(0, 0)))).To(Equal(
			[]pktchain.BranchLeaf{{Branch: 0, Leaf: 0}}))
		Expect(p.BranchMap(top.Instance(netlist.GridKey(1, 1)))).To(Equal(
			[]pktchain.BranchLeaf{{Branch: 1, Leaf: 1}}))
		Expect(p.BranchMap(top.Instance(
			netlist.CornerKey(1, 0, netlist.SouthWest)))).To(Equal(
			[]pktchain.BranchLeaf{{Branch: 1, Leaf: 0}}))
	})

	It("should refuse to insert twice", func() {
		Expect(func() {
			_ = p.InsertProgCircuitry(ctx)
		}).To(Panic())
	})
})

var _ = Describe("Pktchain with an unbalanced iterator", func() {
	It("should refuse branches with differing leaf counts", func() {
		ctx := fabrics.MakeBuilder().Build("demo")
		Expect(annotation.SwitchPathPass{}.Run(ctx)).To(Succeed())

		def := pktchain.DefaultIterator(ctx)

		// Merge the two leaves of the second column into one.
		dropped := false
		iter := func(m *netlist.Module) []pktchain.InsertionEvent {
			events := def(m)
			if m.Class() != netlist.ClassArray {
				return events
			}

			out := make([]pktchain.InsertionEvent, 0, len(events))
			branch := 0
			for _, ev := range events {
				if ev.Kind == pktchain.EventCloseBranch {
					branch++
				}
				if ev.Kind == pktchain.EventCloseLeaf &&
					branch == 1 && !dropped {
					dropped = true
					continue
				}
				out = append(out, ev)
			}

			return out
		}

		p := pktchain.MakeBuilder().WithInstanceIterator(iter).Build()
		Expect(p.Materialize(ctx)).To(Succeed())

		Expect(func() {
			_ = p.InsertProgCircuitry(ctx)
		}).To(PanicWith(ContainSubstring("unbalanced branch")))
	})
})

var _ = Describe("Pktchain delegate", func() {
	var (
		p   *pktchain.Pktchain
		ctx *arch.Context
	)

	BeforeEach(func() {
		p = pktchain.MakeBuilder().Build()
		p.RegisterPrimitiveParams(fabrics.LUTKey(4), fabrics.LUTParams(4))
		ctx = insertPktchain(fabrics.MakeBuilder(), p)
	})

	It("should prefix mux bits with their branch and leaf", func() {
		atop := ctx.Top(netlist.ViewAbstract)
		tileInst := atop.Instance(netlist.GridKey(0, 0))
		cboxInst := tileInst.Model.Instance(netlist.SideKey(netlist.West, 0))
		cbox := cboxInst.Model

		// The tile is the second member of leaf 0 on branch 0, behind the
		// cell's switch box; the first cbox mux sits at offset 24 inside it.
		features := ctx.FASM.MuxForIntrablockSwitch(
			cbox.PortRef("ti").Bit(3), cbox.PortRef("bo").Bit(0),
			[]*netlist.Instance{cboxInst, tileInst})

		Expect(features).To(Equal([]string{"b0l0.b56", "b0l0.b57"}))
	})

	It("should report all-zero selections as None", func() {
		atop := ctx.Top(netlist.ViewAbstract)
		tileInst := atop.Instance(netlist.GridKey(0, 0))
		cboxInst := tileInst.Model.Instance(netlist.SideKey(netlist.West, 0))
		cbox := cboxInst.Model

		features := ctx.FASM.MuxForIntrablockSwitch(
			cbox.PortRef("ti").Bit(0), cbox.PortRef("bo").Bit(0),
			[]*netlist.Instance{cboxInst, tileInst})

		Expect(features).To(Equal([]string{"{none}"}))
	})

	It("should prefix subtiles with their leaf placement", func() {
		atop := ctx.Top(netlist.ViewAbstract)

		Expect(ctx.FASM.PrefixForTile(
			atop.Instance(netlist.GridKey(0, 0)))).To(Equal(
			[]string{"b0l0.b32"}))
		Expect(ctx.FASM.PrefixForTile(
			atop.Instance(netlist.GridKey(0, 1)))).To(Equal(
			[]string{"b0l1.b32"}))
	})

	It("should relocate primitive parameters into the leaf chain", func() {
		ablk := ctx.DB.MustGet(netlist.ViewAbstract, fabrics.BlockKey)
		alut := ablk.Instance(netlist.NameKey("i_lut"))

		params := ctx.FASM.ParamsForPrimitive(alut)
		Expect(params).To(HaveKeyWithValue("lut", "b0[15:0]"))
	})
})
