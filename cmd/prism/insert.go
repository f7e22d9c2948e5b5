package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/prism/annotation"
	"github.com/sarchlab/prism/arch"
	"github.com/sarchlab/prism/fabrics"
	"github.com/sarchlab/prism/flow"
	"github.com/sarchlab/prism/inspect"
	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
	"github.com/sarchlab/prism/prog/frame"
	"github.com/sarchlab/prism/prog/pktchain"
	"github.com/sarchlab/prism/prog/scanchain"
	"github.com/sarchlab/prism/recording"
)

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Build a demo fabric and insert programming circuitry into it.",
	Long: "`insert --protocol [scanchain|frame|pktchain]` builds a demo " +
		"fabric, runs the annotation and insertion passes on it, and prints " +
		"the insertion summary.",
	Run: func(cmd *cobra.Command, _ []string) {
		runInsert(cmd.Flags())
	},
}

func init() {
	rootCmd.AddCommand(insertCmd)

	insertCmd.Flags().String("name", "demo",
		"Name of the architecture context")
	insertCmd.Flags().String("protocol", "scanchain",
		"Programming protocol to insert (scanchain, frame, or pktchain)")

	insertCmd.Flags().Int("width", 2, "Number of tile columns")
	insertCmd.Flags().Int("height", 2, "Number of tile rows")
	insertCmd.Flags().Int("lut-size", 4, "Number of LUT inputs")
	insertCmd.Flags().Int("tracks", 4, "Number of routing tracks per side")

	insertCmd.Flags().Int("chain-width", 1,
		"Scan-chain width (scanchain and pktchain)")
	insertCmd.Flags().Int("word-width", 1,
		"Configuration word width (frame)")
	insertCmd.Flags().Int("phit-width", 8,
		"Packet-network transfer unit width (pktchain)")
	insertCmd.Flags().Int("fifo-depth-log2", 4,
		"Log2 depth of the router FIFOs (pktchain)")

	insertCmd.Flags().Bool("record", false,
		"Record the insertion artifacts into a SQLite database")
	insertCmd.Flags().String("record-path", "",
		"Path of the recording database, without the .sqlite3 suffix")
	insertCmd.Flags().Bool("inspect", false,
		"Serve the annotated fabric over HTTP after insertion")
	insertCmd.Flags().Int("port", 0,
		"Port of the inspection server, 0 for a random port")
	insertCmd.Flags().Bool("browser", false,
		"Open the inspection server in the default browser")
}

func runInsert(flags *pflag.FlagSet) {
	name, _ := flags.GetString("name")
	width, _ := flags.GetInt("width")
	height, _ := flags.GetInt("height")
	lutSize, _ := flags.GetInt("lut-size")
	tracks, _ := flags.GetInt("tracks")

	ctx := fabrics.MakeBuilder().
		WithWidth(width).
		WithHeight(height).
		WithLUTSize(lutSize).
		WithTracks(tracks).
		Build(name)

	proto := buildProtocol(flags)
	proto.(paramRegistry).RegisterPrimitiveParams(
		fabrics.LUTKey(lutSize), fabrics.LUTParams(lutSize))

	f := flow.NewFlow(
		annotation.SwitchPathPass{},
		prog.InsertionPass{Protocol: proto},
	)
	if err := f.Run(ctx); err != nil {
		log.Fatalf("Error running insertion flow: %v", err)
	}

	printSummary(ctx)

	if record, _ := flags.GetBool("record"); record {
		path, _ := flags.GetString("record-path")
		recordArtifacts(ctx, proto, path)
	}

	if serve, _ := flags.GetBool("inspect"); serve {
		i := inspect.NewInspector(ctx)

		if port, _ := flags.GetInt("port"); port != 0 {
			i = i.WithPortNumber(port)
		}
		if web, _ := flags.GetBool("browser"); web {
			i = i.WithBrowser()
		}

		i.StartServer()
		select {}
	}
}

// paramRegistry is the parameter-registration surface shared by all
// protocol entries.
type paramRegistry interface {
	RegisterPrimitiveParams(
		key netlist.ModuleKey,
		params map[string]*prog.DataBitmap,
	)
}

func buildProtocol(flags *pflag.FlagSet) prog.Protocol {
	protocol, _ := flags.GetString("protocol")
	chainWidth, _ := flags.GetInt("chain-width")
	wordWidth, _ := flags.GetInt("word-width")
	phitWidth, _ := flags.GetInt("phit-width")
	fifoDepthLog2, _ := flags.GetInt("fifo-depth-log2")

	switch protocol {
	case "scanchain":
		return scanchain.MakeBuilder().
			WithChainWidth(chainWidth).
			Build()
	case "frame":
		return frame.MakeBuilder().
			WithWordWidth(wordWidth).
			Build()
	case "pktchain":
		return pktchain.MakeBuilder().
			WithChainWidth(chainWidth).
			WithPhitWidth(phitWidth).
			WithRouterFIFODepthLog2(fifoDepthLog2).
			Build()
	default:
		log.Fatalf("Error: unknown protocol %s", protocol)
		return nil
	}
}

type insertReport struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Top     string       `json:"top"`
	Applied []string     `json:"applied_passes"`
	Summary arch.Summary `json:"summary"`
}

func printSummary(ctx *arch.Context) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	err := enc.Encode(insertReport{
		ID:      ctx.ID(),
		Name:    ctx.Name(),
		Top:     string(ctx.TopKey()),
		Applied: ctx.AppliedKeys(),
		Summary: ctx.Summary,
	})
	if err != nil {
		log.Fatalf("Error printing summary: %v", err)
	}
}

func recordArtifacts(ctx *arch.Context, proto prog.Protocol, path string) {
	r := recording.New(path)
	r.CreateTable("prism_passes", recording.PassEntry{})
	r.CreateTable("prism_summary", recording.SummaryEntry{})
	r.CreateTable("prism_bitmaps", recording.BitmapEntry{})

	for _, key := range ctx.AppliedKeys() {
		r.InsertData("prism_passes", recording.PassEntry{
			Context: ctx.ID(),
			Pass:    key,
		})
	}

	r.InsertData("prism_summary", recording.SummaryEntry{
		Context:   ctx.ID(),
		Protocol:  ctx.Summary.ProgType,
		TotalBits: totalBits(ctx),
	})

	switch p := proto.(type) {
	case *scanchain.Scanchain:
		recordBitmaps(r, ctx, p.InstanceBitmap)
	case *frame.Frame:
		recordBitmaps(r, ctx, p.Bitmap)
		recordAddrMaps(r, ctx, p)
	case *pktchain.Pktchain:
		recordBitmaps(r, ctx, p.Chain().InstanceBitmap)
		recordBranches(r, ctx)
	}

	r.Flush()
}

func totalBits(ctx *arch.Context) int {
	switch {
	case ctx.Summary.Scanchain != nil:
		return ctx.Summary.Scanchain.BitstreamSize
	case ctx.Summary.Frame != nil:
		// Address-space capacity; the occupied fraction is per-instance.
		return ctx.Summary.Frame.WordWidth << uint(ctx.Summary.Frame.Addr.Fabric)
	case ctx.Summary.Pktchain != nil:
		return ctx.Summary.Pktchain.TotalBits
	}

	return 0
}

func recordBitmaps(
	r recording.Recorder,
	ctx *arch.Context,
	bitmap func(*netlist.Instance) *prog.DataBitmap,
) {
	for _, key := range ctx.DB.Keys(netlist.ViewDesign) {
		m := ctx.DB.MustGet(netlist.ViewDesign, key)

		for _, inst := range m.Instances() {
			bm := bitmap(inst)
			if bm == nil {
				continue
			}

			for _, seg := range bm.Segments() {
				r.InsertData("prism_bitmaps", recording.BitmapEntry{
					Module:   string(key),
					Instance: inst.Key.String(),
					Offset:   seg.Dst.Offset,
					Length:   seg.Dst.Length,
				})
			}
		}
	}
}

func recordAddrMaps(r recording.Recorder, ctx *arch.Context, f *frame.Frame) {
	r.CreateTable("prism_addrmap", recording.AddrEntry{})

	for _, key := range ctx.DB.Keys(netlist.ViewDesign) {
		m := ctx.DB.MustGet(netlist.ViewDesign, key)

		for _, inst := range m.Instances() {
			am := f.AddrMap(inst)
			if am == nil {
				continue
			}

			for _, seg := range am.Segments() {
				r.InsertData("prism_addrmap", recording.AddrEntry{
					Module:   string(key),
					Instance: inst.Key.String(),
					Base:     seg.Dst.Offset,
					Length:   seg.Dst.Length,
				})
			}
		}
	}
}

func recordBranches(r recording.Recorder, ctx *arch.Context) {
	r.CreateTable("prism_branches", recording.BranchEntry{})

	for branch, leaves := range ctx.Summary.Pktchain.Branches {
		for leaf, bits := range leaves {
			r.InsertData("prism_branches", recording.BranchEntry{
				Branch: branch,
				Leaf:   leaf,
				Bits:   bits,
			})
		}
	}
}
