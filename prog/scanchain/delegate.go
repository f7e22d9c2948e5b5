package scanchain

import (
	"fmt"
	"strings"

	"github.com/sarchlab/prism/fasm"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

// Delegate emits flat bit-stream features over the scanchain annotation
// tables. Hierarchy slices are ordered innermost first; each level's bitmap
// relocates the accumulated bits into the enclosing chain.
type Delegate struct {
	chain *Scanchain
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

	if v, ok := d.chain.connEnable[conn]; ok {
		values = append(values, v)
	} else {
		for _, pin := range conn.SwitchPath {
			sw := pin.Instance

			bm := d.chain.instBitmap[sw]
			if bm == nil {
				panic(fmt.Sprintf("no programming data for switch %v", sw))
			}

			values = append(values, &prog.DataValue{
				Value:  uint64(pin.Lo),
				Bitmap: bm,
			})
		}
	}

	if len(values) == 0 {
		return nil
	}

	var features []string
	for _, v := range values {
		features = append(features, bitFeatures(d.remapThrough(v, hierarchy))...)
	}

	// An all-zero selection still selects: report it as a single None
	// feature rather than an empty list.
	if len(features) == 0 {
		features = []string{fasm.None}
	}

	return features
}

// PrefixForTile returns one "b<offset>" prefix per subtile, relative to the
// module containing the tile instance.
func (d *Delegate) PrefixForTile(instance *netlist.Instance) []string {
	tileBM := d.chain.instBitmap[instance]

	var prefixes []string

	for i := 0; ; i++ {
		sub := instance.Model.Instance(netlist.SubtileKey(i))
		if sub == nil {
			break
		}

		bm := d.chain.instBitmap[sub]
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
// primitive instance, relocated into its parent's chain.
func (d *Delegate) ParamsForPrimitive(
	instance *netlist.Instance,
) map[string]string {
	params := d.chain.primParams[instance.Model.Key()]
	if params == nil {
		return nil
	}

	dataBM := d.chain.instBitmap[instance]
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

func (d *Delegate) remapThrough(
	v *prog.DataValue,
	hierarchy []*netlist.Instance,
) *prog.DataValue {
	for _, h := range hierarchy {
		parent := d.chain.instBitmap[h]
		if parent == nil {
			panic(fmt.Sprintf("no programming data for instance %v", h))
		}

		v = v.Remap(parent)
	}

	return v
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
