// Package fasm defines the bitstream-feature naming contract between the
// programming-circuitry insertion passes and the VPR-XML emitter. Feature
// strings locate configuration bits in the flat bit stream (scanchain,
// frame) or in the two-level branch/leaf space (pktchain).
package fasm

import (
	"fmt"
	"strings"

	"github.com/sarchlab/prism/netlist"
)

// None is the sentinel feature emitted where a feature genuinely has no
// configuration bit, so that downstream tools can distinguish "no bit" from
// "bit zero".
const None = "{none}"

// A Delegate translates structural queries on the annotated abstract view
// into literal feature strings. Each protocol overrides only the
// bit-addressing convention.
type Delegate interface {
	// MuxForIntrablockSwitch returns the features selecting the programmable
	// connection from source to sink inside a block, prefixed by hierarchy.
	// It returns an empty slice for fixed (non-programmable) wires.
	MuxForIntrablockSwitch(
		source, sink netlist.NetRef,
		hierarchy []*netlist.Instance,
	) []string

	// PrefixForTile returns one feature prefix per subtile of the tile
	// instance. Subtiles without configuration bits yield None.
	PrefixForTile(instance *netlist.Instance) []string

	// ParamsForPrimitive returns the parameter-name to bit-range feature
	// mapping of a primitive instance, or an empty map if the primitive has
	// no configuration parameters.
	ParamsForPrimitive(instance *netlist.Instance) map[string]string

	// FeaturesForInterblockSwitch returns the features selecting the
	// programmable connection from source to sink inside a routing box.
	FeaturesForInterblockSwitch(
		source, sink netlist.NetRef,
		hierarchy []*netlist.Instance,
	) []string
}

// Bit formats a flat bit-stream feature: "b<offset>".
func Bit(offset int) string {
	return fmt.Sprintf("b%d", offset)
}

// BitRange formats a flat bit-stream range feature: "b<offset>[hi:lo]".
// A single-bit range degenerates to Bit.
func BitRange(offset, length int) string {
	if length == 1 {
		return Bit(offset)
	}

	return fmt.Sprintf("b%d[%d:0]", offset, length-1)
}

// BranchLeafPrefix formats the pktchain two-level address prefix:
// "b<branch>l<leaf>".
func BranchLeafPrefix(branch, leaf int) string {
	return fmt.Sprintf("b%dl%d", branch, leaf)
}

// Join joins non-empty feature path fragments with dots.
func Join(fragments ...string) string {
	parts := fragments[:0:0]
	for _, f := range fragments {
		if f != "" {
			parts = append(parts, f)
		}
	}

	return strings.Join(parts, ".")
}
