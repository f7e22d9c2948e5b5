package arch

// Summary is the typed hand-off record from the programming-circuitry
// insertion passes to the RTL/VPR-XML emitters. Exactly one protocol field
// is non-nil after insertion.
type Summary struct {
	// ProgType names the installed programming protocol.
	ProgType string

	Scanchain *ScanchainSummary
	Frame     *FrameSummary
	Pktchain  *PktchainSummary
}

// ScanchainSummary describes a completed scanchain insertion.
type ScanchainSummary struct {
	ChainWidth int

	// BitstreamSize is the total number of bits shifted through the
	// top-level chain.
	BitstreamSize int
}

// FrameAddrWidths breaks the global frame address down into its fields.
// The fabric address is X ++ Y ++ Tile.
type FrameAddrWidths struct {
	Fabric int
	X      int
	Y      int

	// Tile is the tile-local address width, including the block/cbox/sbox
	// type-selector prefix.
	Tile          int
	Block         int
	ConnectionBox int
	SwitchBox     int
}

// FrameSummary describes a completed frame insertion.
type FrameSummary struct {
	WordWidth int
	Addr      FrameAddrWidths

	// ReadbackLatency is the number of cycles between asserting prog_ce and
	// valid read-back data at the fabric top, uniform across all leaves.
	ReadbackLatency int
}

// PktchainSummary describes a completed pktchain insertion.
type PktchainSummary struct {
	PhitWidth           int
	ChainWidth          int
	RouterFIFODepthLog2 int

	// Branches holds, per branch of the primary backbone, the bit count of
	// each leaf scan chain. All branches hold the same number of leaves.
	Branches [][]int

	// TotalBits is the sum of all leaf bit counts.
	TotalBits int
}
