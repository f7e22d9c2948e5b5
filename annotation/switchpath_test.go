package annotation_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/prism/annotation"
	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/fabrics"
	"github.com/sarchlab/prism/netlist"
)

var _ = Describe("SwitchPathPass", func() {
	var ctx *arch.Context

	BeforeEach(func() {
		ctx = fabrics.MakeBuilder().Build("demo")

		err := annotation.SwitchPathPass{}.Run(ctx)
		Expect(err).ToNot(HaveOccurred())
	})

	It("should resolve connection-box choices to mux input pins", func() {
		cbox := ctx.DB.MustGet(netlist.ViewAbstract, fabrics.CboxKey)

		for k := 0; k < 4; k++ {
			conn := cbox.ConnectionBetween(
				cbox.PortRef("ti").Bit(k), cbox.PortRef("bo").Bit(0))
			Expect(conn).ToNot(BeNil())

			Expect(conn.SwitchPath).To(HaveLen(1))

			pin := conn.SwitchPath[0]
			Expect(pin.Instance.Key).To(Equal(netlist.NameKey("i_mux_bo0")))
			Expect(pin.Port.Name).To(Equal("i"))
			Expect(pin.Lo).To(Equal(k))
		}
	})

	It("should resolve block input choices", func() {
		blk := ctx.DB.MustGet(netlist.ViewAbstract, fabrics.BlockKey)
		lut := blk.Instance(netlist.NameKey("i_lut"))

		conn := blk.ConnectionBetween(
			blk.PortRef("in").Bit(2), lut.Pin("in").Bit(1))
		Expect(conn).ToNot(BeNil())

		Expect(conn.SwitchPath).To(HaveLen(1))
		Expect(conn.SwitchPath[0].Instance.Key).To(
			Equal(netlist.NameKey("i_mux_in1")))
		Expect(conn.SwitchPath[0].Lo).To(Equal(2))
	})

	It("should resolve switch-box choices per side and track", func() {
		sbox := ctx.DB.MustGet(netlist.ViewAbstract, fabrics.SboxKey)

		// The east output at track 1 is selectable from north, south, and
		// west; north is input bit 0 of the realizing mux.
		conn := sbox.ConnectionBetween(
			sbox.PortRef("n_i").Bit(1), sbox.PortRef("e_o").Bit(1))
		Expect(conn).ToNot(BeNil())

		Expect(conn.SwitchPath).To(HaveLen(1))
		Expect(conn.SwitchPath[0].Instance.Key).To(
			Equal(netlist.NameKey("i_mux_e1")))
		Expect(conn.SwitchPath[0].Lo).To(Equal(0))
	})

	It("should leave fixed wires without a switch path", func() {
		blk := ctx.DB.MustGet(netlist.ViewAbstract, fabrics.BlockKey)
		lut := blk.Instance(netlist.NameKey("i_lut"))

		conn := blk.ConnectionBetween(lut.Pin("out"), blk.PortRef("out"))
		Expect(conn).ToNot(BeNil())
		Expect(conn.SwitchPath).To(BeEmpty())
	})
})
