package scanchain_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/prism/annotation"
	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/fabrics"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
	"github.com/sarchlab/prism/prog/scanchain"
)

func insertScanchain(
	b fabrics.Builder,
	chain *scanchain.Scanchain,
) *arch.Context {
	ctx := b.Build("demo")

	Expect(annotation.SwitchPathPass{}.Run(ctx)).To(Succeed())
	Expect(chain.Materialize(ctx)).To(Succeed())
	Expect(chain.InsertProgCircuitry(ctx)).To(Succeed())

	return ctx
}

var _ = Describe("Scanchain", func() {
	var (
		chain *scanchain.Scanchain
		ctx   *arch.Context
	)

	BeforeEach(func() {
		chain = scanchain.MakeBuilder().Build()
		ctx = insertScanchain(fabrics.MakeBuilder(), chain)
	})

	It("should chain every configuration consumer", func() {
		// Per block: one 16-bit LUT truth table plus four 2-bit input muxes.
		// Per cbox: four 2-bit muxes. Per sbox: sixteen 2-bit muxes.
		expected := map[netlist.ModuleKey]int{
			fabrics.BlockKey: 24,
			fabrics.CboxKey:  8,
			fabrics.SboxKey:  32,
			fabrics.TileKey:  32,
			fabrics.TopKey:   256,
		}

		for key, want := range expected {
			bits, ok := chain.Bitcount(key)
			Expect(ok).To(BeTrue(), string(key))
			Expect(bits).To(Equal(want), string(key))
		}

		Expect(ctx.Summary.ProgType).To(Equal("scanchain"))
		Expect(ctx.Summary.Scanchain.BitstreamSize).To(Equal(256))
	})

	It("should place instance bits in chaining order", func() {
		blk := ctx.DB.MustGet(netlist.ViewDesign, fabrics.BlockKey)

		lut := blk.Instance(netlist.NameKey("i_lut"))
		Expect(chain.InstanceBitmap(lut).Segments()).To(Equal(
			[]prog.BitmapSegment{
				{Src: 0, Dst: prog.DataRange{Offset: 0, Length: 16}},
			}))

		mux1 := blk.Instance(netlist.NameKey("i_mux_in1"))
		Expect(chain.InstanceBitmap(mux1).Segments()).To(Equal(
			[]prog.BitmapSegment{
				{Src: 0, Dst: prog.DataRange{Offset: 18, Length: 2}},
			}))
	})

	It("should mirror the bitmaps onto the abstract view", func() {
		ablk := ctx.DB.MustGet(netlist.ViewAbstract, fabrics.BlockKey)
		alut := ablk.Instance(netlist.NameKey("i_lut"))

		bm := chain.InstanceBitmap(alut)
		Expect(bm).ToNot(BeNil())
		Expect(bm.Length()).To(Equal(16))
	})

	It("should wrap flat prog_data consumers in data registers", func() {
		blk := ctx.DB.MustGet(netlist.ViewDesign, fabrics.BlockKey)

		reg := blk.Instance(netlist.NameKey("i_prog_data_i_lut"))
		Expect(reg).ToNot(BeNil())
		Expect(reg.Model.Class()).To(Equal(netlist.ClassProg))
		Expect(blk.SourceOf(blk.Instance(
			netlist.NameKey("i_lut")).Pin("prog_data"))).ToNot(BeNil())
	})

	It("should delimit block and routing-box chains", func() {
		for _, key := range []netlist.ModuleKey{
			fabrics.BlockKey, fabrics.CboxKey, fabrics.SboxKey,
		} {
			dmod := ctx.DB.MustGet(netlist.ViewDesign, key)

			Expect(dmod.Instance(netlist.NameKey("i_scanchain_head"))).
				ToNot(BeNil())
			Expect(dmod.Instance(netlist.NameKey("i_scanchain_tail"))).
				ToNot(BeNil())
			Expect(dmod.Port("prog_we_o")).ToNot(BeNil())
		}

		// Tiles and arrays pass the chain through without delimiters.
		tile := ctx.DB.MustGet(netlist.ViewDesign, fabrics.TileKey)
		Expect(tile.Instance(netlist.NameKey("i_scanchain_head"))).To(BeNil())
	})

	It("should expose the serial ports on every chained module", func() {
		top := ctx.Top(netlist.ViewDesign)

		Expect(top.Port("prog_we")).ToNot(BeNil())
		Expect(top.Port("prog_din").Width).To(Equal(1))
		Expect(top.Port("prog_dout").Width).To(Equal(1))
		Expect(top.SourceOf(top.PortRef("prog_dout"))).ToNot(BeNil())
	})

	It("should reuse the memoized chain of a processed module", func() {
		blk := ctx.DB.MustGet(netlist.ViewDesign, fabrics.BlockKey)

		Expect(chain.InsertChain(ctx, blk)).To(Equal(24))
	})

	It("should refuse to insert twice", func() {
		Expect(func() {
			_ = chain.InsertProgCircuitry(ctx)
		}).To(Panic())
	})
})

var _ = Describe("Scanchain with padding", func() {
	It("should align delimited chains to the chain width", func() {
		chain := scanchain.MakeBuilder().WithChainWidth(4).Build()
		ctx := insertScanchain(fabrics.MakeBuilder().WithLUTSize(3), chain)

		// An 8-bit truth table plus three 2-bit muxes leaves 14 bits; two
		// padding bits align the block chain to the 4-bit shift width.
		bits, ok := chain.Bitcount(fabrics.BlockKey)
		Expect(ok).To(BeTrue())
		Expect(bits).To(Equal(16))

		blk := ctx.DB.MustGet(netlist.ViewDesign, fabrics.BlockKey)
		Expect(blk.Instance(netlist.NameKey("i_prog_align"))).ToNot(BeNil())
	})
})

var _ = Describe("Scanchain delegate", func() {
	var (
		chain *scanchain.Scanchain
		ctx   *arch.Context
	)

	BeforeEach(func() {
		chain = scanchain.MakeBuilder().Build()
		chain.RegisterPrimitiveParams(fabrics.LUTKey(4), fabrics.LUTParams(4))
		ctx = insertScanchain(fabrics.MakeBuilder(), chain)
	})

	It("should locate mux bits through the hierarchy", func() {
		atop := ctx.Top(netlist.ViewAbstract)
		tileInst := atop.Instance(netlist.GridKey(0, 0))
		cboxInst := tileInst.Model.Instance(netlist.SideKey(netlist.West, 0))
		cbox := cboxInst.Model

		// Selecting track 3 sets both bits of the first cbox mux, which sits
		// at offset 24 of the tile chain.
		features := ctx.FASM.MuxForIntrablockSwitch(
			cbox.PortRef("ti").Bit(3), cbox.PortRef("bo").Bit(0),
			[]*netlist.Instance{cboxInst, tileInst})

		Expect(features).To(Equal([]string{"b24", "b25"}))
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

	It("should prefix subtiles with their chain offset", func() {
		atop := ctx.Top(netlist.ViewAbstract)

		Expect(ctx.FASM.PrefixForTile(
			atop.Instance(netlist.GridKey(0, 0)))).To(Equal([]string{"b0"}))
		Expect(ctx.FASM.PrefixForTile(
			atop.Instance(netlist.GridKey(0, 1)))).To(Equal([]string{"b64"}))
	})

	It("should relocate primitive parameters into the chain", func() {
		ablk := ctx.DB.MustGet(netlist.ViewAbstract, fabrics.BlockKey)
		alut := ablk.Instance(netlist.NameKey("i_lut"))

		params := ctx.FASM.ParamsForPrimitive(alut)
		Expect(params).To(HaveKeyWithValue("lut", "b0[15:0]"))
	})
})
