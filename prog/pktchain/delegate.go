package pktchain

import (
	"fmt"
	"strings"

	"github.com/sarchlab/prism/fasm"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

// Delegate emits two-level bit-stream features over the pktchain annotation
// tables: a "b<branch>l<leaf>" prefix locating the leaf chain on the packet
// network, then flat "b<offset>" features inside the leaf. Queries whose
// hierarchy stays inside one leaf yield plain flat features; the prefix is
// attached at the level that joins the network.
type Delegate struct {
	pktchain *Pktchain
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

	if v := d.pktchain.chain.ConnProgEnable(conn); v != nil {
		values = append(values, v)
	} else {
		for _, pin := range conn.SwitchPath {
			sw := pin.Instance

			bm := d.pktchain.chain.InstanceBitmap(sw)
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
		features = append(features, d.features(v, hierarchy)...)
	}

	// An all-zero selection still selects: report it as a single None
	// feature rather than an empty list.
	if len(features) == 0 {
		features = []string{fasm.None}
	}

	return features
}

// PrefixForTile returns one prefix per subtile. A tile placed directly on
// the packet network carries the "b<branch>l<leaf>" prefix of its leaf.
func (d *Delegate) PrefixForTile(instance *netlist.Instance) []string {
	tileBM := d.pktchain.chain.InstanceBitmap(instance)

	prefix := ""
	if pm := d.pktchain.branchMap[instance]; len(pm) > 0 {
		prefix = fasm.BranchLeafPrefix(pm[0].Branch, pm[0].Leaf)
	}

	var prefixes []string

	for i := 0; ; i++ {
		sub := instance.Model.Instance(netlist.SubtileKey(i))
		if sub == nil {
			break
		}

		bm := d.pktchain.chain.InstanceBitmap(sub)
		if bm == nil || tileBM == nil {
			prefixes = append(prefixes, fasm.None)
			continue
		}

		bm = bm.Remap(tileBM)
		prefixes = append(prefixes,
			fasm.Join(prefix, fasm.Bit(bm.Segments()[0].Dst.Offset)))
	}

	return prefixes
}

// ParamsForPrimitive returns the registered parameter features of a
// primitive instance, relocated into its parent's chain.
func (d *Delegate) ParamsForPrimitive(
	instance *netlist.Instance,
) map[string]string {
	params := d.pktchain.chain.PrimitiveParams(instance.Model.Key())
	if params == nil {
		return nil
	}

	dataBM := d.pktchain.chain.InstanceBitmap(instance)
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

// FeaturesForInterblockSwitch uses the same addressing as intra-block
// switches.
func (d *Delegate) FeaturesForInterblockSwitch(
	source, sink netlist.NetRef,
	hierarchy []*netlist.Instance,
) []string {
	return d.MuxForIntrablockSwitch(source, sink, hierarchy)
}

// features relocates a value through the hierarchy and formats one feature
// per set bit, attaching the branch/leaf prefix once the hierarchy reaches
// the packet network.
func (d *Delegate) features(
	v *prog.DataValue,
	hierarchy []*netlist.Instance,
) []string {
	prefix := ""

	for i, h := range hierarchy {
		bm := d.pktchain.chain.InstanceBitmap(h)
		if bm == nil {
			panic(fmt.Sprintf("no programming data for instance %v", h))
		}

		v = v.Remap(bm)

		if pm := d.pktchain.branchMap[h]; len(pm) > 0 {
			placement := d.resolvePlacement(pm[0], hierarchy[i+1:])
			prefix = fasm.BranchLeafPrefix(placement.Branch, placement.Leaf)

			break
		}
	}

	var out []string

	for _, vr := range v.Breakdown() {
		for i := 0; i < vr.Range.Length; i++ {
			if vr.Value>>uint(i)&1 == 1 {
				out = append(out, fasm.Join(prefix, fasm.Bit(vr.Range.Offset+i)))
			}
		}
	}

	return out
}

// resolvePlacement relocates a branch/leaf coordinate through the enclosing
// sub-array splices.
func (d *Delegate) resolvePlacement(
	placement BranchLeaf,
	outer []*netlist.Instance,
) BranchLeaf {
	for _, h := range outer {
		pm := d.pktchain.branchMap[h]
		if placement.Branch >= len(pm) || pm[placement.Branch].Branch < 0 {
			panic(fmt.Sprintf(
				"branch %d of %v is not spliced into the enclosing network",
				placement.Branch, h))
		}

		at := pm[placement.Branch]
		placement = BranchLeaf{Branch: at.Branch, Leaf: at.Leaf + placement.Leaf}
	}

	return placement
}
