// Package netlist defines the mutable hierarchical netlist graph that the
// programming-circuitry insertion passes operate on. A netlist is organized
// as modules that own ports and instances of other modules. Two views of the
// same hierarchy (abstract and design) coexist in a Database, keyed
// identically, so that any hierarchy position is addressable in both.
package netlist

// View distinguishes the two parallel representations of a module hierarchy.
type View int

// The two views of a module hierarchy.
const (
	// ViewAbstract is the architecture-description view, consumed by FASM
	// and VPR-XML generation.
	ViewAbstract View = iota

	// ViewDesign is the implementation view, consumed by RTL generation.
	// Programming circuitry is inserted into this view.
	ViewDesign
)

func (v View) String() string {
	switch v {
	case ViewAbstract:
		return "abstract"
	case ViewDesign:
		return "design"
	}

	return "unknown"
}

// ModuleClass tags the role a module plays in the fabric.
type ModuleClass int

// Module classes.
const (
	ClassPrimitive ModuleClass = iota
	ClassSlice
	ClassCluster
	ClassBlock
	ClassSwitchBox
	ClassConnectionBox
	ClassTile
	ClassArray
	ClassSwitch
	ClassProg
	ClassAux
	ClassMode
)

var moduleClassNames = map[ModuleClass]string{
	ClassPrimitive:     "primitive",
	ClassSlice:         "slice",
	ClassCluster:       "cluster",
	ClassBlock:         "block",
	ClassSwitchBox:     "switch_box",
	ClassConnectionBox: "connection_box",
	ClassTile:          "tile",
	ClassArray:         "array",
	ClassSwitch:        "switch",
	ClassProg:          "prog",
	ClassAux:           "aux",
	ClassMode:          "mode",
}

func (c ModuleClass) String() string {
	if s, ok := moduleClassNames[c]; ok {
		return s
	}

	return "unknown"
}

// IsRoutingBox reports whether the class is a switch box or connection box.
func (c ModuleClass) IsRoutingBox() bool {
	return c == ClassSwitchBox || c == ClassConnectionBox
}

// Direction is the direction of a port.
type Direction int

// Port directions.
const (
	DirInput Direction = iota
	DirOutput
)

func (d Direction) String() string {
	if d == DirInput {
		return "input"
	}

	return "output"
}

// NetClass tags the purpose of a port's wires.
type NetClass int

// Net classes.
const (
	NetUser NetClass = iota
	NetGlobal
	NetSegment
	NetBridge
	NetProg
)

// Orientation is one of the four sides of a tile or array.
type Orientation int

// Orientations.
const (
	North Orientation = iota
	East
	South
	West
)

func (o Orientation) String() string {
	switch o {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	}

	return "unknown"
}

// Corner is one of the four corners of an array grid cell.
type Corner int

// Corners.
const (
	NorthEast Corner = iota
	NorthWest
	SouthEast
	SouthWest
)

func (c Corner) String() string {
	switch c {
	case NorthEast:
		return "ne"
	case NorthWest:
		return "nw"
	case SouthEast:
		return "se"
	case SouthWest:
		return "sw"
	}

	return "unknown"
}
