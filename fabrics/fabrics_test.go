package fabrics_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/prism/fabrics"
	"github.com/sarchlab/prism/netlist"
)

var _ = Describe("Builder", func() {
	It("should build the demo fabric in both views", func() {
		ctx := fabrics.MakeBuilder().Build("demo")

		Expect(ctx.TopKey()).To(Equal(fabrics.TopKey))

		for _, view := range []netlist.View{
			netlist.ViewAbstract, netlist.ViewDesign,
		} {
			top := ctx.Top(view)
			Expect(top.Class()).To(Equal(netlist.ClassArray))
			Expect(top.NumInstances()).To(Equal(8))
		}
	})

	It("should place tiles and switch boxes on the grid", func() {
		ctx := fabrics.MakeBuilder().WithWidth(3).WithHeight(2).Build("demo")
		top := ctx.Top(netlist.ViewDesign)

		Expect(top.NumInstances()).To(Equal(12))

		tile := top.Instance(netlist.GridKey(2, 1))
		Expect(tile).ToNot(BeNil())
		Expect(tile.Model.Key()).To(Equal(fabrics.TileKey))

		sbox := top.Instance(netlist.CornerKey(2, 1, netlist.SouthWest))
		Expect(sbox).ToNot(BeNil())
		Expect(sbox.Model.Key()).To(Equal(fabrics.SboxKey))

		Expect(top.SourceOf(tile.Pin("ti"))).ToNot(BeNil())
	})

	It("should express routing choices as multi-source abstract sinks", func() {
		ctx := fabrics.MakeBuilder().WithTracks(6).Build("demo")
		cbox := ctx.DB.MustGet(netlist.ViewAbstract, fabrics.CboxKey)

		conns := cbox.ConnectionsTo(cbox.PortRef("bo").Bit(0))
		Expect(conns).To(HaveLen(6))
	})

	It("should realize routing choices as design-view muxes", func() {
		ctx := fabrics.MakeBuilder().Build("demo")
		cbox := ctx.DB.MustGet(netlist.ViewDesign, fabrics.CboxKey)

		mux := cbox.Instance(netlist.NameKey("i_mux_bo0"))
		Expect(mux).ToNot(BeNil())
		Expect(mux.Model.Class()).To(Equal(netlist.ClassSwitch))
		Expect(mux.Model.Port("prog_data").Width).To(Equal(2))

		driver := cbox.SourceOf(cbox.PortRef("bo").Bit(0))
		Expect(driver).ToNot(BeNil())
		Expect(driver.Src.Instance).To(BeIdenticalTo(mux))
	})

	It("should expose the LUT configuration bits in the design view only",
		func() {
			ctx := fabrics.MakeBuilder().WithLUTSize(5).Build("demo")

			dlut := ctx.DB.MustGet(netlist.ViewDesign, fabrics.LUTKey(5))
			Expect(dlut.Port("prog_data").Width).To(Equal(32))

			alut := ctx.DB.MustGet(netlist.ViewAbstract, fabrics.LUTKey(5))
			Expect(alut.Port("prog_data")).To(BeNil())
		})

	It("should size the LUT parameter bitmap to the truth table", func() {
		params := fabrics.LUTParams(4)

		Expect(params).To(HaveKey("lut"))
		Expect(params["lut"].Length()).To(Equal(16))
	})

	It("should panic on a degenerate grid", func() {
		Expect(func() {
			fabrics.MakeBuilder().WithWidth(0).Build("demo")
		}).To(Panic())
	})

	It("should panic on a degenerate LUT", func() {
		Expect(func() {
			fabrics.MakeBuilder().WithLUTSize(1).Build("demo")
		}).To(Panic())
	})

	It("should panic on a degenerate track count", func() {
		Expect(func() {
			fabrics.MakeBuilder().WithTracks(1).Build("demo")
		}).To(Panic())
	})
})
