// Package flow schedules named passes over an architecture context. Pass
// keys are dot-separated paths; a dependency or conflict rule matches every
// key it is a prefix of. The flow resolves dependencies, orders the passes
// topologically, and runs them sequentially.
package flow

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sarchlab/prism/arch"
)

// A Pass is a named graph transformation over an architecture context.
type Pass interface {
	// Key is the dot-separated identity of the pass.
	Key() string

	// Dependences lists key prefixes that must have run before this pass.
	Dependences() []string

	// Conflicts lists key prefixes that must not run in the same flow.
	Conflicts() []string

	// PassesAfterSelf lists key prefixes that must run after this pass.
	PassesAfterSelf() []string

	// Run executes the pass.
	Run(ctx *arch.Context) error
}

// A Flow collects passes and runs them in dependency order.
type Flow struct {
	passes []Pass
}

// NewFlow creates a flow over the given passes.
func NewFlow(passes ...Pass) *Flow {
	return &Flow{passes: passes}
}

// AddPass appends one pass to the flow.
func (f *Flow) AddPass(p Pass) {
	f.passes = append(f.passes, p)
}

// keyIsPrefix reports whether key is a dot-path prefix of other.
func keyIsPrefix(key, other string) bool {
	k := strings.Split(key, ".")
	o := strings.Split(other, ".")

	if len(k) > len(o) {
		return false
	}

	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}

	return true
}

func keysOverlap(a, b string) bool {
	return keyIsPrefix(a, b) || keyIsPrefix(b, a)
}

// Run validates, orders, and executes all added passes on ctx. The flow is
// emptied on success.
func (f *Flow) Run(ctx *arch.Context) error {
	passes, err := f.resolve(ctx)
	if err != nil {
		return err
	}

	ordered, err := order(passes)
	if err != nil {
		return err
	}

	for _, p := range ordered {
		log.Printf("flow: running pass %q", p.Key())
		start := time.Now()

		if err := p.Run(ctx); err != nil {
			return fmt.Errorf("pass %q: %w", p.Key(), err)
		}

		log.Printf("flow: pass %q took %v", p.Key(), time.Since(start))
		ctx.MarkApplied(p.Key())
	}

	f.passes = nil

	return nil
}

func (f *Flow) resolve(ctx *arch.Context) ([]Pass, error) {
	selected := make(map[string]Pass)
	var keys []string

	for _, p := range f.passes {
		key := p.Key()

		if _, ok := selected[key]; ok {
			return nil, fmt.Errorf("pass %q is added twice", key)
		}

		if ctx.IsApplied(key) {
			return nil, fmt.Errorf("pass %q is already applied to the context", key)
		}

		for other := range selected {
			if keysOverlap(key, other) {
				return nil, fmt.Errorf("passes %q and %q conflict with each other",
					key, other)
			}
		}

		selected[key] = p
		keys = append(keys, key)
	}

	applied := ctx.AppliedKeys()

	for _, p := range f.passes {
		for _, rule := range p.Conflicts() {
			for _, other := range append(keys, applied...) {
				if other != p.Key() && keyIsPrefix(rule, other) {
					return nil, fmt.Errorf("passes %q and %q conflict with each other",
						p.Key(), other)
				}
			}
		}

		for _, rule := range p.Dependences() {
			if !anyPrefixed(rule, keys) && !anyPrefixed(rule, applied) {
				return nil, fmt.Errorf("missing dependent pass %q required by %q",
					rule, p.Key())
			}
		}
	}

	passes := make([]Pass, 0, len(keys))
	for _, k := range keys {
		passes = append(passes, selected[k])
	}

	return passes, nil
}

func anyPrefixed(rule string, keys []string) bool {
	for _, k := range keys {
		if keyIsPrefix(rule, k) {
			return true
		}
	}

	return false
}

// order performs a Kahn topological sort over the ordering rules.
func order(passes []Pass) ([]Pass, error) {
	n := len(passes)
	succ := make([][]int, n)
	indeg := make([]int, n)

	addEdge := func(from, to int) {
		succ[from] = append(succ[from], to)
		indeg[to]++
	}

	for i, p := range passes {
		for j, other := range passes {
			if i == j {
				continue
			}

			// other must run before p.
			for _, rule := range p.Dependences() {
				if keyIsPrefix(rule, other.Key()) {
					addEdge(j, i)
				}
			}

			// other must run after p.
			for _, rule := range p.PassesAfterSelf() {
				if keyIsPrefix(rule, other.Key()) {
					addEdge(i, j)
				}
			}
		}
	}

	var ready []int
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]Pass, 0, n)
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		ordered = append(ordered, passes[i])

		for _, j := range succ[i] {
			indeg[j]--
			if indeg[j] == 0 {
				ready = append(ready, j)
			}
		}
	}

	if len(ordered) != n {
		return nil, fmt.Errorf("cannot determine a feasible order of the passes")
	}

	return ordered, nil
}
