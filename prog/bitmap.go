// Package prog holds the protocol-independent pieces of the
// programming-circuitry insertion subsystem: configuration-data bitmap
// bookkeeping, the closed protocol interface, and the shared control-signal
// buffering algorithm that balances prog_rst/prog_done latency across the
// hierarchy.
package prog

import (
	"fmt"
	"strings"
)

// A DataRange is one contiguous (offset, length) span in a configuration
// data stream or address space.
type DataRange struct {
	Offset int
	Length int
}

// A BitmapSegment maps a source span starting at Src onto a destination
// range.
type BitmapSegment struct {
	Src int
	Dst DataRange
}

// A DataBitmap is an immutable, possibly multi-segment mapping describing
// where in a parent's flat configuration-data space a consumer's bits live.
// Source offsets are assigned contiguously in construction order.
type DataBitmap struct {
	segs   []BitmapSegment
	length int
}

// NewDataBitmap constructs a bitmap from destination ranges. The i-th range
// receives the source span immediately after the (i-1)-th.
func NewDataBitmap(ranges ...DataRange) *DataBitmap {
	b := &DataBitmap{}

	for _, r := range ranges {
		if r.Length <= 0 {
			panic(fmt.Sprintf("bitmap range must have positive length, got %+v", r))
		}

		b.segs = append(b.segs, BitmapSegment{Src: b.length, Dst: r})
		b.length += r.Length
	}

	return b
}

// Length returns the total number of bits mapped.
func (b *DataBitmap) Length() int {
	return b.length
}

// Segments returns the segments of the bitmap in source order.
func (b *DataBitmap) Segments() []BitmapSegment {
	return b.segs
}

// Query maps the source span [offset, offset+length) onto destination
// ranges. It panics if the span exceeds the bitmap bound.
func (b *DataBitmap) Query(offset, length int) []DataRange {
	var out []DataRange

	for length > 0 {
		seg, ok := b.segmentAt(offset)
		if !ok {
			panic(fmt.Sprintf("bit offset %d out of bitmap bound %d", offset, b.length))
		}

		n := seg.Src + seg.Dst.Length - offset
		if length < n {
			n = length
		}

		out = append(out, DataRange{
			Offset: seg.Dst.Offset + (offset - seg.Src),
			Length: n,
		})

		offset += n
		length -= n
	}

	return out
}

func (b *DataBitmap) segmentAt(offset int) (BitmapSegment, bool) {
	for _, seg := range b.segs {
		if offset >= seg.Src && offset < seg.Src+seg.Dst.Length {
			return seg, true
		}
	}

	return BitmapSegment{}, false
}

// Remap composes this bitmap against a parent bitmap: every destination
// range of b is re-interpreted as a source span of parent. Remapping is
// associative: composing level by level equals flattening directly.
func (b *DataBitmap) Remap(parent *DataBitmap) *DataBitmap {
	var ranges []DataRange

	for _, seg := range b.segs {
		ranges = append(ranges, parent.Query(seg.Dst.Offset, seg.Dst.Length)...)
	}

	return NewDataBitmap(ranges...)
}

func (b *DataBitmap) String() string {
	var sb strings.Builder

	sb.WriteString("DataBitmap(")
	for i, seg := range b.segs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "[%d+:%d]->[%d+:%d]",
			seg.Src, seg.Dst.Length, seg.Dst.Offset, seg.Dst.Length)
	}
	sb.WriteString(")")

	return sb.String()
}

// A ValueRange is one piece of a broken-down DataValue.
type ValueRange struct {
	Value uint64
	Range DataRange
}

// A DataValue is a configuration-bit pattern together with the bitmap that
// places its bits.
type DataValue struct {
	Value  uint64
	Bitmap *DataBitmap
}

// NewDataValue constructs a value over the given destination ranges.
func NewDataValue(value uint64, ranges ...DataRange) *DataValue {
	return &DataValue{Value: value, Bitmap: NewDataBitmap(ranges...)}
}

// Remap returns the value with its bitmap composed against parent.
func (v *DataValue) Remap(parent *DataBitmap) *DataValue {
	return &DataValue{Value: v.Value, Bitmap: v.Bitmap.Remap(parent)}
}

// Breakdown splits the bitmapped value into one simple value per segment.
func (v *DataValue) Breakdown() []ValueRange {
	var out []ValueRange

	for _, seg := range v.Bitmap.segs {
		mask := uint64(1)<<uint(seg.Dst.Length) - 1
		out = append(out, ValueRange{
			Value: (v.Value >> uint(seg.Src)) & mask,
			Range: seg.Dst,
		})
	}

	return out
}

func (v *DataValue) String() string {
	return fmt.Sprintf("DataValue(%d'h%x, %v)", v.Bitmap.length, v.Value, v.Bitmap)
}
