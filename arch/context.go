// Package arch holds the per-architecture context that passes operate on:
// the two-view module database, the top-level module key, the FASM delegate
// installed by the active programming protocol, and the typed summaries the
// insertion passes hand off to the RTL/VPR-XML emitters.
package arch

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/sarchlab/prism/fasm"
	"github.com/sarchlab/prism/netlist"
)

// A Context owns all architecture data of one fabric. It is mutated in
// place by exactly one pass at a time under the flow scheduler's sequential
// ordering discipline.
type Context struct {
	id   string
	name string

	DB  *netlist.Database
	top netlist.ModuleKey

	// FASM is installed by the programming protocol after insertion.
	FASM fasm.Delegate

	Summary Summary

	applied map[string]bool
}

// NewContext creates a fresh context with an empty database.
func NewContext(name string) *Context {
	return &Context{
		id:      xid.New().String(),
		name:    name,
		DB:      netlist.NewDatabase(),
		applied: make(map[string]bool),
	}
}

// ID returns the unique identifier of the context.
func (c *Context) ID() string {
	return c.id
}

// Name returns the name of the context.
func (c *Context) Name() string {
	return c.name
}

// SetTop sets the key of the top-level array. Both views must already hold
// a module under the key.
func (c *Context) SetTop(key netlist.ModuleKey) {
	for _, view := range []netlist.View{netlist.ViewAbstract, netlist.ViewDesign} {
		if c.DB.Get(view, key) == nil {
			panic(fmt.Sprintf("top module %s missing in %v view", key, view))
		}
	}

	c.top = key
}

// TopKey returns the key of the top-level array.
func (c *Context) TopKey() netlist.ModuleKey {
	if c.top == "" {
		panic("top module not set on context")
	}

	return c.top
}

// Top returns the top-level array in the given view.
func (c *Context) Top(view netlist.View) *netlist.Module {
	return c.DB.MustGet(view, c.TopKey())
}

// MarkApplied records that the pass with the given key has run.
func (c *Context) MarkApplied(key string) {
	c.applied[key] = true
}

// IsApplied reports whether a pass with the given key has run.
func (c *Context) IsApplied(key string) bool {
	return c.applied[key]
}

// AppliedKeys returns the keys of all passes applied so far.
func (c *Context) AppliedKeys() []string {
	keys := make([]string, 0, len(c.applied))
	for k := range c.applied {
		keys = append(keys, k)
	}

	return keys
}
