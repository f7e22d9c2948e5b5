// Package fabrics builds small demonstration fabrics: a parametric grid of
// identical tiles (one LUT block behind a connection box) with one switch
// box per grid cell. The fabrics exist to give the insertion passes a
// realistic two-view hierarchy; they are not an architecture authoring API.
package fabrics

import (
	"fmt"

	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

// A Builder can build demo fabric contexts.
type Builder struct {
	width   int
	height  int
	lutSize int
	tracks  int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		width:   2,
		height:  2,
		lutSize: 4,
		tracks:  4,
	}
}

// WithWidth sets the number of tile columns.
func (b Builder) WithWidth(w int) Builder {
	b.width = w
	return b
}

// WithHeight sets the number of tile rows.
func (b Builder) WithHeight(h int) Builder {
	b.height = h
	return b
}

// WithLUTSize sets the number of LUT inputs.
func (b Builder) WithLUTSize(k int) Builder {
	b.lutSize = k
	return b
}

// WithTracks sets the number of routing tracks per side.
func (b Builder) WithTracks(t int) Builder {
	b.tracks = t
	return b
}

// Module keys of the demo fabric.
const (
	TopKey   netlist.ModuleKey = "demo_fabric"
	TileKey  netlist.ModuleKey = "demo_tile"
	BlockKey netlist.ModuleKey = "demo_clb"
	CboxKey  netlist.ModuleKey = "demo_cbox"
	SboxKey  netlist.ModuleKey = "demo_sbox"
)

// LUTKey returns the module key of the k-input LUT primitive.
func LUTKey(k int) netlist.ModuleKey {
	return netlist.ModuleKey(fmt.Sprintf("lut%d", k))
}

// LUTParams returns the configuration parameters of the k-input LUT, placed
// relative to its prog_data bus, for registration with a protocol.
func LUTParams(k int) map[string]*prog.DataBitmap {
	return map[string]*prog.DataBitmap{
		"lut": prog.NewDataBitmap(prog.DataRange{Offset: 0, Length: 1 << uint(k)}),
	}
}

// Build validates the parameters and creates a fresh context holding the
// demo fabric in both views, with the top module set.
func (b Builder) Build(name string) *arch.Context {
	if b.width < 1 || b.height < 1 {
		panic(fmt.Sprintf("fabric size must be at least 1x1, got %dx%d",
			b.width, b.height))
	}

	if b.lutSize < 2 {
		panic(fmt.Sprintf("LUT size must be at least 2, got %d", b.lutSize))
	}

	if b.tracks < 2 {
		panic(fmt.Sprintf("track count must be at least 2, got %d", b.tracks))
	}

	ctx := arch.NewContext(name)

	for _, view := range []netlist.View{netlist.ViewAbstract, netlist.ViewDesign} {
		b.buildView(ctx, view)
	}

	ctx.SetTop(TopKey)

	return ctx
}

func (b Builder) buildView(ctx *arch.Context, view netlist.View) {
	lut := b.buildLUT(ctx, view)

	blk := b.buildBlock(ctx, view, lut)
	cbox := b.buildCbox(ctx, view)
	sbox := b.buildSbox(ctx, view)
	tile := b.buildTile(ctx, view, blk, cbox)
	b.buildArray(ctx, view, tile, sbox)
}

func (b Builder) buildLUT(ctx *arch.Context, view netlist.View) *netlist.Module {
	m := netlist.NewModule(string(LUTKey(b.lutSize)), view, netlist.ClassPrimitive)
	m.AddPort("in", b.lutSize, netlist.DirInput)
	m.AddPort("out", 1, netlist.DirOutput)

	if view == netlist.ViewDesign {
		m.AddPort("prog_data", 1<<uint(b.lutSize), netlist.DirInput).
			WithClass(netlist.NetProg)
	}

	return ctx.DB.Add(m)
}

// buildMux registers (or fetches) an n-input single-bit programmable mux in
// the design view.
func buildMux(ctx *arch.Context, n int) *netlist.Module {
	key := netlist.ModuleKey(fmt.Sprintf("sw_mux%d", n))
	if m := ctx.DB.Get(netlist.ViewDesign, key); m != nil {
		return m
	}

	m := netlist.NewModule(string(key), netlist.ViewDesign, netlist.ClassSwitch)
	m.AddPort("i", n, netlist.DirInput)
	m.AddPort("o", 1, netlist.DirOutput)
	m.AddPort("prog_data", max(1, prog.CeilLog2(n)), netlist.DirInput).
		WithClass(netlist.NetProg)

	return ctx.DB.Add(m)
}

// buildBlock builds the logic block: one LUT whose inputs are each
// selectable from any block input.
func (b Builder) buildBlock(
	ctx *arch.Context,
	view netlist.View,
	lut *netlist.Module,
) *netlist.Module {
	m := netlist.NewModule(string(BlockKey), view, netlist.ClassBlock)
	m.AddPort("in", b.lutSize, netlist.DirInput)
	m.AddPort("out", 1, netlist.DirOutput)

	ilut := m.Instantiate(lut, netlist.NameKey("i_lut"))

	if view == netlist.ViewAbstract {
		for j := 0; j < b.lutSize; j++ {
			for k := 0; k < b.lutSize; k++ {
				m.Connect(m.PortRef("in").Bit(k), ilut.Pin("in").Bit(j))
			}
		}
	} else {
		mux := buildMux(ctx, b.lutSize)
		for j := 0; j < b.lutSize; j++ {
			im := m.Instantiate(mux,
				netlist.NameKey(fmt.Sprintf("i_mux_in%d", j)))
			m.Connect(m.PortRef("in"), im.Pin("i"))
			m.Connect(im.Pin("o"), ilut.Pin("in").Bit(j))
		}
	}

	m.Connect(ilut.Pin("out"), m.PortRef("out"))

	return ctx.DB.Add(m)
}

// buildCbox builds the connection box: each block input is selectable from
// any incoming track.
func (b Builder) buildCbox(
	ctx *arch.Context,
	view netlist.View,
) *netlist.Module {
	m := netlist.NewModule(string(CboxKey), view, netlist.ClassConnectionBox)
	m.AddPort("ti", b.tracks, netlist.DirInput).WithClass(netlist.NetSegment)
	m.AddPort("bo", b.lutSize, netlist.DirOutput)

	if view == netlist.ViewAbstract {
		for j := 0; j < b.lutSize; j++ {
			for k := 0; k < b.tracks; k++ {
				m.Connect(m.PortRef("ti").Bit(k), m.PortRef("bo").Bit(j))
			}
		}
	} else {
		mux := buildMux(ctx, b.tracks)
		for j := 0; j < b.lutSize; j++ {
			im := m.Instantiate(mux,
				netlist.NameKey(fmt.Sprintf("i_mux_bo%d", j)))
			m.Connect(m.PortRef("ti"), im.Pin("i"))
			m.Connect(im.Pin("o"), m.PortRef("bo").Bit(j))
		}
	}

	return ctx.DB.Add(m)
}

var sboxSides = []string{"n", "e", "s", "w"}

// buildSbox builds the switch box: per side and track, the outgoing track
// is selectable from the same track of the three other sides.
func (b Builder) buildSbox(
	ctx *arch.Context,
	view netlist.View,
) *netlist.Module {
	m := netlist.NewModule(string(SboxKey), view, netlist.ClassSwitchBox)

	for _, side := range sboxSides {
		m.AddPort(side+"_i", b.tracks, netlist.DirInput).
			WithClass(netlist.NetSegment)
		m.AddPort(side+"_o", b.tracks, netlist.DirOutput).
			WithClass(netlist.NetSegment)
	}

	if view == netlist.ViewAbstract {
		for _, out := range sboxSides {
			for t := 0; t < b.tracks; t++ {
				for _, in := range sboxSides {
					if in == out {
						continue
					}
					m.Connect(m.PortRef(in+"_i").Bit(t),
						m.PortRef(out+"_o").Bit(t))
				}
			}
		}

		return ctx.DB.Add(m)
	}

	mux := buildMux(ctx, len(sboxSides)-1)

	for _, out := range sboxSides {
		for t := 0; t < b.tracks; t++ {
			im := m.Instantiate(mux,
				netlist.NameKey(fmt.Sprintf("i_mux_%s%d", out, t)))

			bit := 0
			for _, in := range sboxSides {
				if in == out {
					continue
				}
				m.Connect(m.PortRef(in+"_i").Bit(t), im.Pin("i").Bit(bit))
				bit++
			}

			m.Connect(im.Pin("o"), m.PortRef(out+"_o").Bit(t))
		}
	}

	return ctx.DB.Add(m)
}

// buildTile builds the tile: the block at subtile 0 behind one west-side
// connection box, wired through with fixed connections.
func (b Builder) buildTile(
	ctx *arch.Context,
	view netlist.View,
	blk, cbox *netlist.Module,
) *netlist.Module {
	m := netlist.NewModule(string(TileKey), view, netlist.ClassTile)
	m.AddPort("ti", b.tracks, netlist.DirInput).WithClass(netlist.NetSegment)
	m.AddPort("out", 1, netlist.DirOutput)

	iblk := m.Instantiate(blk, netlist.SubtileKey(0))
	icbox := m.Instantiate(cbox, netlist.SideKey(netlist.West, 0))

	m.Connect(m.PortRef("ti"), icbox.Pin("ti"))
	m.Connect(icbox.Pin("bo"), iblk.Pin("in"))
	m.Connect(iblk.Pin("out"), m.PortRef("out"))

	return ctx.DB.Add(m)
}

// buildArray builds the top-level grid: one tile per cell, one switch box
// at each cell's southwest corner feeding the tile's incoming tracks.
func (b Builder) buildArray(
	ctx *arch.Context,
	view netlist.View,
	tile, sbox *netlist.Module,
) *netlist.Module {
	m := netlist.NewModule(string(TopKey), view, netlist.ClassArray)

	for x := 0; x < b.width; x++ {
		for y := 0; y < b.height; y++ {
			itile := m.Instantiate(tile, netlist.GridKey(x, y))
			isbox := m.Instantiate(sbox,
				netlist.CornerKey(x, y, netlist.SouthWest))

			m.Connect(isbox.Pin("e_o"), itile.Pin("ti"))
		}
	}

	return ctx.DB.Add(m)
}
