package prog

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DataBitmap", func() {
	It("should assign source offsets contiguously", func() {
		bm := NewDataBitmap(
			DataRange{Offset: 10, Length: 5},
			DataRange{Offset: 0, Length: 3},
		)

		Expect(bm.Length()).To(Equal(8))

		segs := bm.Segments()
		Expect(segs).To(HaveLen(2))
		Expect(segs[0]).To(Equal(BitmapSegment{
			Src: 0, Dst: DataRange{Offset: 10, Length: 5}}))
		Expect(segs[1]).To(Equal(BitmapSegment{
			Src: 5, Dst: DataRange{Offset: 0, Length: 3}}))
	})

	It("should panic on a non-positive range", func() {
		Expect(func() {
			NewDataBitmap(DataRange{Offset: 0, Length: 0})
		}).To(Panic())
	})

	It("should query within one segment", func() {
		bm := NewDataBitmap(DataRange{Offset: 10, Length: 5})

		Expect(bm.Query(1, 3)).To(Equal([]DataRange{
			{Offset: 11, Length: 3},
		}))
	})

	It("should query across segments", func() {
		bm := NewDataBitmap(
			DataRange{Offset: 10, Length: 5},
			DataRange{Offset: 0, Length: 3},
		)

		Expect(bm.Query(3, 4)).To(Equal([]DataRange{
			{Offset: 13, Length: 2},
			{Offset: 0, Length: 2},
		}))
	})

	It("should panic when querying out of bound", func() {
		bm := NewDataBitmap(DataRange{Offset: 0, Length: 4})

		Expect(func() {
			bm.Query(2, 4)
		}).To(Panic())
	})

	It("should compose through Remap", func() {
		inner := NewDataBitmap(DataRange{Offset: 2, Length: 2})
		outer := NewDataBitmap(DataRange{Offset: 100, Length: 8})

		Expect(inner.Remap(outer).Query(0, 2)).To(Equal([]DataRange{
			{Offset: 102, Length: 2},
		}))
	})

	It("should remap associatively", func() {
		a := NewDataBitmap(
			DataRange{Offset: 1, Length: 2},
			DataRange{Offset: 5, Length: 1},
		)
		b := NewDataBitmap(
			DataRange{Offset: 4, Length: 3},
			DataRange{Offset: 0, Length: 4},
		)
		c := NewDataBitmap(DataRange{Offset: 32, Length: 16})

		stepwise := a.Remap(b).Remap(c)
		flattened := a.Remap(b.Remap(c))

		Expect(stepwise.Segments()).To(Equal(flattened.Segments()))
	})
})

var _ = Describe("DataValue", func() {
	It("should break a value down per segment", func() {
		v := NewDataValue(0b10110,
			DataRange{Offset: 8, Length: 3},
			DataRange{Offset: 0, Length: 2},
		)

		Expect(v.Breakdown()).To(Equal([]ValueRange{
			{Value: 0b110, Range: DataRange{Offset: 8, Length: 3}},
			{Value: 0b10, Range: DataRange{Offset: 0, Length: 2}},
		}))
	})

	It("should carry the value through Remap", func() {
		v := NewDataValue(0b11, DataRange{Offset: 0, Length: 2})
		parent := NewDataBitmap(DataRange{Offset: 6, Length: 4})

		Expect(v.Remap(parent).Breakdown()).To(Equal([]ValueRange{
			{Value: 0b11, Range: DataRange{Offset: 6, Length: 2}},
		}))
	})
})

var _ = Describe("CeilLog2", func() {
	It("should compute the address width", func() {
		Expect(CeilLog2(0)).To(Equal(0))
		Expect(CeilLog2(1)).To(Equal(0))
		Expect(CeilLog2(2)).To(Equal(1))
		Expect(CeilLog2(3)).To(Equal(2))
		Expect(CeilLog2(4)).To(Equal(2))
		Expect(CeilLog2(5)).To(Equal(3))
		Expect(CeilLog2(1024)).To(Equal(10))
	})
})
