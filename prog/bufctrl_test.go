package prog

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
)

func newCtrlConsumerCell(ctx *arch.Context, name string) *netlist.Module {
	cell := netlist.NewModule(name, netlist.ViewDesign, netlist.ClassProg)
	cell.AddPort("prog_clk", 1, netlist.DirInput).AsClock().
		WithClass(netlist.NetProg)
	cell.AddPort("prog_rst", 1, netlist.DirInput).WithClass(netlist.NetProg)
	cell.AddPort("prog_done", 1, netlist.DirInput).WithClass(netlist.NetProg)

	return ctx.DB.Add(cell)
}

var _ = Describe("BufferProgCtrl", func() {
	var (
		ctx            *arch.Context
		cfg            *netlist.Module
		blk, tile, top *netlist.Module
	)

	BeforeEach(func() {
		ctx = arch.NewContext("test")
		cfg = newCtrlConsumerCell(ctx, "cfg")

		blk = netlist.NewModule("blk", netlist.ViewDesign, netlist.ClassBlock)
		blk.Instantiate(cfg, netlist.NameKey("i_cfg"))
		ctx.DB.Add(blk)

		tile = netlist.NewModule("tile", netlist.ViewDesign, netlist.ClassTile)
		tile.Instantiate(cfg, netlist.NameKey("i_cfg"))
		tile.Instantiate(blk, netlist.SubtileKey(0))
		ctx.DB.Add(tile)

		top = netlist.NewModule("top", netlist.ViewDesign, netlist.ClassArray)
		top.Instantiate(tile, netlist.GridKey(0, 0))
		top.Instantiate(blk, netlist.GridKey(1, 0))
		ctx.DB.Add(top)

		ctx.DB.Add(netlist.NewModule("top", netlist.ViewAbstract,
			netlist.ClassArray))
		ctx.SetTop("top")
	})

	It("should balance buffering depth across uneven subtrees", func() {
		levels := BufferProgCtrl(ctx)

		// blk buffers once, tile twice, top one level per child depth plus
		// one for its own shallowest bucket.
		Expect(levels).To(Equal(3))

		for _, key := range []string{
			"i_buf_prog_rst_l0", "i_buf_prog_rst_l1", "i_buf_prog_rst_l2",
			"i_buf_prog_done_l0", "i_buf_prog_done_l1", "i_buf_prog_done_l2",
		} {
			Expect(top.Instance(netlist.NameKey(key))).ToNot(BeNil())
		}

		Expect(blk.Instance(netlist.NameKey("i_buf_prog_rst_l0"))).ToNot(BeNil())
		Expect(blk.Instance(netlist.NameKey("i_buf_prog_rst_l1"))).To(BeNil())

		Expect(tile.Instance(netlist.NameKey("i_buf_prog_rst_l1"))).ToNot(BeNil())
		Expect(tile.Instance(netlist.NameKey("i_buf_prog_rst_l2"))).To(BeNil())
	})

	It("should create the control ports on every buffered module", func() {
		BufferProgCtrl(ctx)

		for _, m := range []*netlist.Module{top, tile, blk} {
			Expect(m.Port("prog_clk")).ToNot(BeNil())
			Expect(m.Port("prog_clk").IsClock).To(BeTrue())
			Expect(m.Port("prog_rst")).ToNot(BeNil())
			Expect(m.Port("prog_done")).ToNot(BeNil())
		}
	})

	It("should drive every consumer pin", func() {
		BufferProgCtrl(ctx)

		cfgInst := tile.Instance(netlist.NameKey("i_cfg"))
		Expect(tile.SourceOf(cfgInst.Pin("prog_rst"))).ToNot(BeNil())
		Expect(tile.SourceOf(cfgInst.Pin("prog_done"))).ToNot(BeNil())
		Expect(tile.SourceOf(cfgInst.Pin("prog_clk"))).ToNot(BeNil())
	})

	It("should chain deeper-level buffers toward the module ports", func() {
		BufferProgCtrl(ctx)

		deepest := top.Instance(netlist.NameKey("i_buf_prog_rst_l2"))
		driver := top.SourceOf(deepest.Pin("D"))

		Expect(driver).ToNot(BeNil())
		Expect(driver.Src).To(Equal(top.PortRef("prog_rst")))
	})
})

var _ = Describe("GetOrCreateCtrlNets", func() {
	It("should return the buffered nets once buffering has run", func() {
		ctx := arch.NewContext("test")
		cfg := newCtrlConsumerCell(ctx, "cfg")

		blk := netlist.NewModule("blk", netlist.ViewDesign, netlist.ClassBlock)
		blk.Instantiate(cfg, netlist.NameKey("i_cfg"))
		ctx.DB.Add(blk)

		ctx.DB.Add(netlist.NewModule("blk", netlist.ViewAbstract,
			netlist.ClassBlock))
		ctx.SetTop("blk")

		BufferProgCtrl(ctx)

		nets := GetOrCreateCtrlNets(blk)
		Expect(nets.Clk).To(Equal(blk.PortRef("prog_clk")))
		Expect(nets.Rst.Kind).To(Equal(netlist.RefPin))
		Expect(nets.Rst.Instance.Key).To(Equal(netlist.NameKey(BufRstL0Inst)))
		Expect(nets.Done.Instance.Key).To(Equal(netlist.NameKey(BufDoneL0Inst)))
	})

	It("should create the raw ports on an unbuffered module", func() {
		m := netlist.NewModule("m", netlist.ViewDesign, netlist.ClassSlice)

		nets := GetOrCreateCtrlNets(m)

		Expect(nets.Clk).To(Equal(m.PortRef("prog_clk")))
		Expect(nets.Rst).To(Equal(m.PortRef("prog_rst")))
		Expect(nets.Done).To(Equal(m.PortRef("prog_done")))
	})
})
