package pktchain

import (
	"sort"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
)

// DefaultIterator walks arrays column by column, south to north: the two
// southern corner switch boxes, the grid cell, the two northern corner
// switch boxes, one leaf per grid cell, one branch per column. Tiles are
// walked counter-clockwise from the south side. Everything else is walked
// in instantiation order.
func DefaultIterator(ctx *arch.Context) InstanceIterator {
	return func(m *netlist.Module) []InsertionEvent {
		switch m.Class() {
		case netlist.ClassArray:
			return arrayEvents(m)
		case netlist.ClassTile:
			return tileEvents(m)
		}

		events := make([]InsertionEvent, 0, m.NumInstances())
		for _, inst := range m.Instances() {
			events = append(events, instanceEvent(inst))
		}

		return events
	}
}

func instanceEvent(inst *netlist.Instance) InsertionEvent {
	return InsertionEvent{Kind: EventInstance, Instance: inst, SubBranch: -1}
}

func arrayEvents(m *netlist.Module) []InsertionEvent {
	w, h := arrayExtents(m)

	var events []InsertionEvent

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			for _, c := range []netlist.Corner{
				netlist.SouthWest, netlist.SouthEast,
			} {
				if inst := m.Instance(netlist.CornerKey(x, y, c)); inst != nil {
					events = append(events, instanceEvent(inst))
				}
			}

			cell := m.Instance(netlist.GridKey(x, y))
			if cell != nil {
				events = append(events, instanceEvent(cell))
			}

			for _, c := range []netlist.Corner{
				netlist.NorthWest, netlist.NorthEast,
			} {
				if inst := m.Instance(netlist.CornerKey(x, y, c)); inst != nil {
					events = append(events, instanceEvent(inst))
				}
			}

			// Sub-arrays splice whole leaves of their own; only tiles and
			// empty cells close a leaf here.
			if cell == nil || cell.Model.Class() != netlist.ClassArray {
				events = append(events, InsertionEvent{Kind: EventCloseLeaf})
			}
		}

		events = append(events, InsertionEvent{Kind: EventCloseBranch})
	}

	return events
}

func tileEvents(m *netlist.Module) []InsertionEvent {
	bySide := make(map[netlist.Orientation][]*netlist.Instance)
	var subtiles []*netlist.Instance

	for _, inst := range m.Instances() {
		switch inst.Key.Kind {
		case netlist.KeySide:
			bySide[inst.Key.Side] = append(bySide[inst.Key.Side], inst)
		case netlist.KeySubtile:
			subtiles = append(subtiles, inst)
		}
	}

	for _, insts := range bySide {
		sort.SliceStable(insts, func(i, j int) bool {
			return insts[i].Key.Index < insts[j].Key.Index
		})
	}
	sort.SliceStable(subtiles, func(i, j int) bool {
		return subtiles[i].Key.Index < subtiles[j].Key.Index
	})

	var events []InsertionEvent

	appendAll := func(insts []*netlist.Instance, reversed bool) {
		if reversed {
			for i := len(insts) - 1; i >= 0; i-- {
				events = append(events, instanceEvent(insts[i]))
			}
			return
		}
		for _, inst := range insts {
			events = append(events, instanceEvent(inst))
		}
	}

	appendAll(bySide[netlist.South], true)
	appendAll(bySide[netlist.West], false)
	appendAll(subtiles, true)
	appendAll(bySide[netlist.East], false)
	appendAll(bySide[netlist.North], true)

	return events
}

// arrayExtents derives the grid size from the instance keys.
func arrayExtents(m *netlist.Module) (w, h int) {
	for _, inst := range m.Instances() {
		switch inst.Key.Kind {
		case netlist.KeyGrid, netlist.KeyCorner:
		default:
			continue
		}

		if inst.Key.X+1 > w {
			w = inst.Key.X + 1
		}
		if inst.Key.Y+1 > h {
			h = inst.Key.Y + 1
		}
	}

	return w, h
}
