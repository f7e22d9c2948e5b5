package frame

import (
	"fmt"

	"github.com/sarchlab/prism/netlist"
	"github.com/sarchlab/prism/prog"
)

// A treeNode is one node of the ephemeral address decoder tree built per
// module during insertion. Leaves wrap addressable instances; branches
// aggregate children of equal-or-smaller address width.
type treeNode interface {
	addrWidth() int
}

type treeLeaf struct {
	inst *netlist.Instance
}

func (l *treeLeaf) addrWidth() int {
	return l.inst.Model.Port("prog_addr").Width
}

type treeBranch struct {
	parent   *treeBranch
	children []treeNode

	// childAddrWidth is the address width every direct child occupies,
	// fixed by the first (widest, due to descending insertion) child.
	childAddrWidth int
}

func newTreeBranch(first treeNode, parent *treeBranch) *treeBranch {
	return &treeBranch{
		parent:         parent,
		children:       []treeNode{first},
		childAddrWidth: first.addrWidth(),
	}
}

func (b *treeBranch) addrWidth() int {
	if len(b.children) == 1 {
		return b.childAddrWidth
	}

	return b.childAddrWidth + prog.CeilLog2(len(b.children))
}

// add places n into the tree, first-fit from the root. Children that are
// branches are probed before widening this node. It reports whether the
// node could accommodate n within its own address budget.
func (b *treeBranch) add(n treeNode) bool {
	if n.addrWidth() > b.childAddrWidth {
		panic(fmt.Sprintf(
			"decoder tree: node width %d exceeds child width %d",
			n.addrWidth(), b.childAddrWidth))
	}

	if n.addrWidth() < b.childAddrWidth {
		for _, c := range b.children {
			if cb, ok := c.(*treeBranch); ok && cb.add(n) {
				return true
			}
		}
	}

	// The root may grow freely; an inner node only while select bits
	// granted by its parent still have room.
	if b.parent == nil ||
		len(b.children) < 1<<(b.parent.childAddrWidth-b.childAddrWidth) {
		if n.addrWidth() < b.childAddrWidth {
			b.children = append(b.children, newTreeBranch(n, b))
		} else {
			b.children = append(b.children, n)
		}

		return true
	}

	return false
}
