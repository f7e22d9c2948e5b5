package netlist

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Module", func() {
	var m *Module

	BeforeEach(func() {
		m = NewModule("clb", ViewDesign, ClassBlock)
	})

	It("should add ports", func() {
		p := m.AddPort("in", 4, DirInput)

		Expect(p.Width).To(Equal(4))
		Expect(p.Direction).To(Equal(DirInput))
		Expect(m.Port("in")).To(BeIdenticalTo(p))
		Expect(m.PortRef("in").Width()).To(Equal(4))
	})

	It("should panic when adding a duplicate port", func() {
		m.AddPort("in", 4, DirInput)

		Expect(func() {
			m.AddPort("in", 2, DirInput)
		}).To(Panic())
	})

	It("should panic when adding a zero-width port", func() {
		Expect(func() {
			m.AddPort("in", 0, DirInput)
		}).To(Panic())
	})

	It("should panic when referencing an unknown port", func() {
		Expect(func() {
			m.PortRef("nope")
		}).To(Panic())
	})

	It("should list ports in creation order", func() {
		m.AddPort("b", 1, DirInput)
		m.AddPort("a", 1, DirInput)
		m.AddPort("c", 1, DirOutput)

		ports := m.Ports()
		Expect(ports).To(HaveLen(3))
		Expect(ports[0].Name).To(Equal("b"))
		Expect(ports[1].Name).To(Equal("a"))
		Expect(ports[2].Name).To(Equal("c"))
	})

	It("should instantiate models of the same view", func() {
		model := NewModule("lut4", ViewDesign, ClassPrimitive)
		model.AddPort("out", 1, DirOutput)

		inst := m.Instantiate(model, NameKey("i_lut"))

		Expect(m.Instance(NameKey("i_lut"))).To(BeIdenticalTo(inst))
		Expect(m.NumInstances()).To(Equal(1))
		Expect(inst.Pin("out").Width()).To(Equal(1))
		Expect(inst.HasPin("nope")).To(BeFalse())
	})

	It("should panic when instantiating across views", func() {
		model := NewModule("lut4", ViewAbstract, ClassPrimitive)

		Expect(func() {
			m.Instantiate(model, NameKey("i_lut"))
		}).To(Panic())
	})

	It("should panic when an instance key is taken", func() {
		model := NewModule("lut4", ViewDesign, ClassPrimitive)
		m.Instantiate(model, NameKey("i_lut"))

		Expect(func() {
			m.Instantiate(model, NameKey("i_lut"))
		}).To(Panic())
	})

	It("should list instances in instantiation order", func() {
		model := NewModule("lut4", ViewDesign, ClassPrimitive)
		m.Instantiate(model, NameKey("i_b"))
		m.Instantiate(model, NameKey("i_a"))

		insts := m.Instances()
		Expect(insts).To(HaveLen(2))
		Expect(insts[0].Key).To(Equal(NameKey("i_b")))
		Expect(insts[1].Key).To(Equal(NameKey("i_a")))
	})
})

var _ = Describe("Connect", func() {
	var m *Module

	BeforeEach(func() {
		m = NewModule("clb", ViewDesign, ClassBlock)
		m.AddPort("in", 4, DirInput)
		m.AddPort("out", 4, DirOutput)
	})

	It("should connect equal-width references", func() {
		conn := m.Connect(m.PortRef("in"), m.PortRef("out"))

		Expect(m.Connections()).To(HaveLen(1))
		Expect(m.SourceOf(m.PortRef("out"))).To(BeIdenticalTo(conn))
		Expect(m.ConnectionBetween(
			m.PortRef("in"), m.PortRef("out"))).To(BeIdenticalTo(conn))
	})

	It("should find the driver of any sink bit", func() {
		conn := m.Connect(m.PortRef("in").Slice(1, 3), m.PortRef("out").Slice(1, 3))

		Expect(m.SourceOf(m.PortRef("out").Bit(2))).To(BeIdenticalTo(conn))
		Expect(m.SourceOf(m.PortRef("out").Bit(0))).To(BeNil())
	})

	It("should panic on width mismatch", func() {
		Expect(func() {
			m.Connect(m.PortRef("in").Bit(0), m.PortRef("out"))
		}).To(Panic())
	})

	It("should panic on a nil reference", func() {
		Expect(func() {
			m.Connect(NetRef{}, m.PortRef("out"))
		}).To(Panic())
	})

	It("should panic when a constant is the sink", func() {
		Expect(func() {
			m.Connect(m.PortRef("in"), ConstRef(0, 4))
		}).To(Panic())
	})

	It("should panic when a reference belongs to another module", func() {
		other := NewModule("other", ViewDesign, ClassBlock)
		other.AddPort("x", 4, DirOutput)

		Expect(func() {
			m.Connect(other.PortRef("x"), m.PortRef("out"))
		}).To(Panic())
	})

	It("should panic when a design-view sink bit is double-driven", func() {
		m.Connect(m.PortRef("in"), m.PortRef("out"))

		Expect(func() {
			m.Connect(m.PortRef("in").Bit(0), m.PortRef("out").Bit(0))
		}).To(Panic())
	})

	It("should accept constant drivers", func() {
		conn := m.Connect(ConstRef(0xA, 4), m.PortRef("out"))

		Expect(conn.Src.Kind).To(Equal(RefConst))
		Expect(conn.Src.Value).To(Equal(uint64(0xA)))
	})
})

var _ = Describe("Connect in the abstract view", func() {
	var m *Module

	BeforeEach(func() {
		m = NewModule("cbox", ViewAbstract, ClassConnectionBox)
		m.AddPort("ti", 3, DirInput)
		m.AddPort("bo", 1, DirOutput)
	})

	It("should allow multiple sources per sink bit", func() {
		for i := 0; i < 3; i++ {
			m.Connect(m.PortRef("ti").Bit(i), m.PortRef("bo"))
		}

		Expect(m.ConnectionsTo(m.PortRef("bo"))).To(HaveLen(3))
	})
})

var _ = Describe("NetRef", func() {
	It("should slice within bounds", func() {
		m := NewModule("m", ViewDesign, ClassBlock)
		m.AddPort("bus", 8, DirInput)

		r := m.PortRef("bus").Slice(2, 6)
		Expect(r.Lo).To(Equal(2))
		Expect(r.Hi).To(Equal(6))
		Expect(r.Bit(1).Lo).To(Equal(3))
	})

	It("should panic when slicing out of bounds", func() {
		m := NewModule("m", ViewDesign, ClassBlock)
		m.AddPort("bus", 8, DirInput)

		Expect(func() {
			m.PortRef("bus").Slice(4, 12)
		}).To(Panic())
	})

	It("should panic on an oversized constant", func() {
		Expect(func() {
			ConstRef(0, 65)
		}).To(Panic())
	})

	It("should report the zero value as nil", func() {
		Expect(NetRef{}.IsNil()).To(BeTrue())
		Expect(ConstRef(1, 1).IsNil()).To(BeFalse())
	})
})

var _ = Describe("Database", func() {
	var db *Database

	BeforeEach(func() {
		db = NewDatabase()
	})

	It("should register and retrieve modules per view", func() {
		a := db.Add(NewModule("clb", ViewAbstract, ClassBlock))
		d := db.Add(NewModule("clb", ViewDesign, ClassBlock))

		Expect(db.Get(ViewAbstract, "clb")).To(BeIdenticalTo(a))
		Expect(db.Get(ViewDesign, "clb")).To(BeIdenticalTo(d))
		Expect(db.MustGet(ViewDesign, "clb")).To(BeIdenticalTo(d))
	})

	It("should panic on duplicate keys within a view", func() {
		db.Add(NewModule("clb", ViewDesign, ClassBlock))

		Expect(func() {
			db.Add(NewModule("clb", ViewDesign, ClassBlock))
		}).To(Panic())
	})

	It("should panic when a module is missing", func() {
		Expect(func() {
			db.MustGet(ViewDesign, "nope")
		}).To(Panic())
	})

	It("should list keys in registration order", func() {
		db.Add(NewModule("b", ViewDesign, ClassBlock))
		db.Add(NewModule("a", ViewDesign, ClassBlock))

		Expect(db.Keys(ViewDesign)).To(Equal([]ModuleKey{"b", "a"}))
	})
})
