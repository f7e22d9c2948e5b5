package netlist

import "fmt"

// ModuleKey identifies a module within a view. Keys are globally unique per
// view; the same key in the two views refers to the two representations of
// the same logical module.
type ModuleKey string

// KeyKind discriminates the forms an InstanceKey can take.
type KeyKind int

// Instance key kinds.
const (
	KeyName KeyKind = iota
	KeySubtile
	KeyGrid
	KeyCorner
	KeySide
)

// InstanceKey addresses an instance inside its parent module. Depending on
// the parent's class, the key is a plain name (blocks, slices), a subtile
// index (tiles), a grid position (arrays), a position/corner pair (array
// switch boxes), or a side/offset pair (tile connection boxes). The zero
// value is a name key with an empty name and is never valid.
type InstanceKey struct {
	Kind   KeyKind
	Name   string
	Index  int
	X, Y   int
	Corner Corner
	Side   Orientation
}

// NameKey returns a plain-name instance key.
func NameKey(name string) InstanceKey {
	return InstanceKey{Kind: KeyName, Name: name}
}

// SubtileKey returns a tile-subtile instance key.
func SubtileKey(i int) InstanceKey {
	return InstanceKey{Kind: KeySubtile, Index: i}
}

// GridKey returns an array grid-cell instance key.
func GridKey(x, y int) InstanceKey {
	return InstanceKey{Kind: KeyGrid, X: x, Y: y}
}

// CornerKey returns an array switch-box instance key.
func CornerKey(x, y int, c Corner) InstanceKey {
	return InstanceKey{Kind: KeyCorner, X: x, Y: y, Corner: c}
}

// SideKey returns a tile connection-box instance key.
func SideKey(side Orientation, offset int) InstanceKey {
	return InstanceKey{Kind: KeySide, Side: side, Index: offset}
}

func (k InstanceKey) String() string {
	switch k.Kind {
	case KeyName:
		return k.Name
	case KeySubtile:
		return fmt.Sprintf("subtile[%d]", k.Index)
	case KeyGrid:
		return fmt.Sprintf("grid[%d][%d]", k.X, k.Y)
	case KeyCorner:
		return fmt.Sprintf("sbox[%d][%d].%v", k.X, k.Y, k.Corner)
	case KeySide:
		return fmt.Sprintf("cbox.%v[%d]", k.Side, k.Index)
	}

	return "invalid"
}
