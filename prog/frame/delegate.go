package frame

import (
	"fmt"
	"strings"

	"github.com/sarchlab/prism/fasm"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

// Delegate emits flat bit-stream features over the frame annotation tables.
// Word-address windows are scaled by the word width into bit offsets, so
// the feature grammar matches the scanchain one. Hierarchy slices are
// ordered innermost first.
type Delegate struct {
	frame *Frame
}

var _ fasm.Delegate = (*Delegate)(nil)

// MuxForIntrablockSwitch returns the features selecting the connection from
// source to sink, derived from the annotated switch path unless an explicit
// enable pattern was registered for the connection.
func (d *Delegate) MuxForIntrablockSwitch(
	source, sink netlist.NetRef,
	hierarchy []*netlist.Instance,
) []string {
	amod := sink.Owner()

	conn := amod.ConnectionBetween(source, sink)
	if conn == nil {
		return nil
	}

	var values []*prog.DataValue

	if v, ok := d.frame.connEnable[conn]; ok {
		values = append(values, v)
	} else {
		for _, pin := range conn.SwitchPath {
			sw := pin.Instance

			bm := d.frame.bitmap[sw]
			if bm == nil {
				panic(fmt.Sprintf("no programming data for switch %v", sw))
			}

			v := &prog.DataValue{Value: uint64(pin.Lo), Bitmap: bm}

			// The switch's bits live inside the aggregating sram-data
			// cell; relocate through its word window first.
			if window := d.scaledAddrMap(sw); window != nil {
				v = v.Remap(window)
			}

			values = append(values, v)
		}
	}

	if len(values) == 0 {
		return nil
	}

	var features []string
	for _, v := range values {
		features = append(features, bitFeatures(d.remapThrough(v, hierarchy))...)
	}

	if len(features) == 0 {
		features = []string{fasm.None}
	}

	return features
}

// PrefixForTile returns one "b<offset>" prefix per subtile, relative to the
// module containing the tile instance.
func (d *Delegate) PrefixForTile(instance *netlist.Instance) []string {
	tileBM := d.scaledAddrMap(instance)

	var prefixes []string

	for i := 0; ; i++ {
		sub := instance.Model.Instance(netlist.SubtileKey(i))
		if sub == nil {
			break
		}

		bm := d.scaledAddrMap(sub)
		if bm == nil || tileBM == nil {
			prefixes = append(prefixes, fasm.None)
			continue
		}

		bm = bm.Remap(tileBM)
		prefixes = append(prefixes, fasm.Bit(bm.Segments()[0].Dst.Offset))
	}

	return prefixes
}

// ParamsForPrimitive returns the registered parameter features of a
// primitive instance, relocated into its parent's bit space.
func (d *Delegate) ParamsForPrimitive(
	instance *netlist.Instance,
) map[string]string {
	params := d.frame.primParams[instance.Model.Key()]
	if params == nil {
		return nil
	}

	dataBM := d.frame.bitmap[instance]
	if dataBM == nil {
		return nil
	}

	out := make(map[string]string, len(params))

	for name, bm := range params {
		var parts []string
		for _, seg := range bm.Remap(dataBM).Segments() {
			parts = append(parts, fasm.BitRange(seg.Dst.Offset, seg.Dst.Length))
		}

		out[name] = strings.Join(parts, ",")
	}

	return out
}

// FeaturesForInterblockSwitch uses the same flat addressing as intra-block
// switches.
func (d *Delegate) FeaturesForInterblockSwitch(
	source, sink netlist.NetRef,
	hierarchy []*netlist.Instance,
) []string {
	return d.MuxForIntrablockSwitch(source, sink, hierarchy)
}

// remapThrough relocates a bit-space value through the word-address window
// of its own data cell and then through each enclosing hierarchy level.
func (d *Delegate) remapThrough(
	v *prog.DataValue,
	hierarchy []*netlist.Instance,
) *prog.DataValue {
	for _, h := range hierarchy {
		parent := d.scaledAddrMap(h)
		if parent == nil {
			panic(fmt.Sprintf("no programming data for instance %v", h))
		}

		v = v.Remap(parent)
	}

	return v
}

// scaledAddrMap converts an instance's word-address window into bit space.
func (d *Delegate) scaledAddrMap(inst *netlist.Instance) *prog.DataBitmap {
	bm := d.frame.addrMap[inst]
	if bm == nil {
		return nil
	}

	ranges := make([]prog.DataRange, 0, len(bm.Segments()))
	for _, seg := range bm.Segments() {
		ranges = append(ranges, prog.DataRange{
			Offset: seg.Dst.Offset * d.frame.wordWidth,
			Length: seg.Dst.Length * d.frame.wordWidth,
		})
	}

	return prog.NewDataBitmap(ranges...)
}

// bitFeatures lists one "b<offset>" feature per set bit of the value.
func bitFeatures(v *prog.DataValue) []string {
	var out []string

	for _, vr := range v.Breakdown() {
		for i := 0; i < vr.Range.Length; i++ {
			if vr.Value>>uint(i)&1 == 1 {
				out = append(out, fasm.Bit(vr.Range.Offset+i))
			}
		}
	}

	return out
}
