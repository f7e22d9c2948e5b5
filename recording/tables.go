package recording

// PassEntry logs one applied pass of a flow run.
type PassEntry struct {
	Context string
	Pass    string
}

// SummaryEntry records the scalar outcome of one insertion.
type SummaryEntry struct {
	Context   string
	Protocol  string
	TotalBits int
}

// BitmapEntry places one instance's programming bits inside its parent
// module's bit space.
type BitmapEntry struct {
	Module   string
	Instance string
	Offset   int
	Length   int
}

// AddrEntry records one instance's frame address window inside its parent
// module's address space.
type AddrEntry struct {
	Module   string
	Instance string
	Base     int
	Length   int
}

// BranchEntry records the bit count of one pktchain leaf on the primary
// backbone.
type BranchEntry struct {
	Branch int
	Leaf   int
	Bits   int
}
