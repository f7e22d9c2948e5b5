package prog

import (
	"github.com/sarchlab/prism/arch"
)

// Kind identifies one of the supported programming protocols. The set is
// closed: every protocol implements the full Protocol interface.
type Kind int

// Programming protocol kinds.
const (
	KindScanchain Kind = iota
	KindFrame
	KindPktchain
)

func (k Kind) String() string {
	switch k {
	case KindScanchain:
		return "scanchain"
	case KindFrame:
		return "frame"
	case KindPktchain:
		return "pktchain"
	}

	return "unknown"
}

// A Protocol grafts one configuration-data delivery network onto a fabric.
type Protocol interface {
	// Kind returns the protocol kind.
	Kind() Kind

	// Materialize installs the protocol's primitive cells and summary
	// skeleton into the context. It must run before insertion.
	Materialize(ctx *arch.Context) error

	// InsertProgCircuitry buffers the programming control signals, walks
	// the design-view hierarchy inserting the protocol circuitry, annotates
	// both views, installs the FASM delegate, and fills the context
	// summary. Calling it twice on one context is an internal error.
	InsertProgCircuitry(ctx *arch.Context) error
}

// InsertionPass adapts a Protocol to the flow scheduler.
type InsertionPass struct {
	Protocol Protocol
}

// Key returns "prog.insertion.<kind>".
func (p InsertionPass) Key() string {
	return "prog.insertion." + p.Protocol.Kind().String()
}

// Dependences requires the switch-path annotation pass.
func (p InsertionPass) Dependences() []string {
	return []string{"annotation.switch_path"}
}

// Conflicts returns no conflicts.
func (p InsertionPass) Conflicts() []string {
	return nil
}

// PassesAfterSelf requires RTL emission to run after insertion.
func (p InsertionPass) PassesAfterSelf() []string {
	return []string{"rtl"}
}

// Run materializes the protocol and inserts its circuitry.
func (p InsertionPass) Run(ctx *arch.Context) error {
	if err := p.Protocol.Materialize(ctx); err != nil {
		return err
	}

	return p.Protocol.InsertProgCircuitry(ctx)
}
