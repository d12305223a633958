package linked

import (
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/requirement"
	"github.com/zyedidia/generic/mapset"
)

// step is one way out of a node, with the requirements to take it and to
// come back
type step struct {
	to      *Node
	forward requirement.Requirement
	reverse requirement.Requirement
}

// steps lists the internal edges of n's static node followed by its placed
// edges
func (n *Node) steps(internalOnly bool) []step {
	var out []step
	for _, se := range n.Static.Edges {
		if se.NodeTarget == nil {
			continue
		}
		out = append(out, step{
			to:      n.Room.Node(se.NodeTarget.Name),
			forward: se.ReqOut(),
			reverse: se.ReqIn(),
		})
	}
	if internalOnly {
		return out
	}
	for _, e := range n.Edges {
		out = append(out, step{to: e.Other(n), forward: e.Forward(n), reverse: e.Reverse(n)})
	}
	return out
}

func (s step) passable(fwd, rev *requirement.Capabilities) bool {
	if fwd != nil && !s.forward.Able(*fwd) {
		return false
	}
	if rev != nil && !s.reverse.Able(*rev) {
		return false
	}
	return true
}

// Successors returns the nodes one step away from n. A nil capability
// pointer skips that direction's check; rev requires the way back to be
// open too.
func (n *Node) Successors(fwd, rev *requirement.Capabilities, internalOnly bool) []*Node {
	var out []*Node
	for _, s := range n.steps(internalOnly) {
		if s.passable(fwd, rev) {
			out = append(out, s.to)
		}
	}
	return out
}

// Closure is the set of nodes reachable from a start node. Nodes are kept
// in discovery order.
type Closure struct {
	Nodes []*Node

	members      mapset.Set[*Node]
	distance     map[*Node]int
	internalOnly bool
	maxDistance  int
}

// Exit is an external static edge of a placed node that is not linked yet
type Exit struct {
	Node   *Node
	Static *library.StaticEdge
}

// Slot is a collectable slot of a placed node
type Slot struct {
	Node   *Node
	Static *library.StaticCollectable
}

// NewClosure runs a breadth-first search from start. maxDistance limits the
// number of steps taken; zero means unlimited.
func NewClosure(start *Node, fwd, rev *requirement.Capabilities, internalOnly bool, maxDistance int) *Closure {
	c := &Closure{
		members:      mapset.New[*Node](),
		distance:     make(map[*Node]int),
		internalOnly: internalOnly,
		maxDistance:  maxDistance,
	}
	c.add(start, 0)
	c.expand([]*Node{start}, fwd, rev)
	return c
}

// Extend continues the search from every node already in the closure with
// a new capability pair and returns the nodes it added
func (c *Closure) Extend(fwd, rev *requirement.Capabilities) []*Node {
	frontier := append([]*Node(nil), c.Nodes...)
	return c.expand(frontier, fwd, rev)
}

// Contains reports whether n is in the closure
func (c *Closure) Contains(n *Node) bool {
	return c.members.Has(n)
}

// Size returns the number of nodes in the closure
func (c *Closure) Size() int {
	return c.members.Size()
}

func (c *Closure) add(n *Node, d int) {
	c.members.Put(n)
	c.distance[n] = d
	c.Nodes = append(c.Nodes, n)
}

func (c *Closure) expand(queue []*Node, fwd, rev *requirement.Capabilities) []*Node {
	var added []*Node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		d := c.distance[n]
		if c.maxDistance > 0 && d >= c.maxDistance {
			continue
		}
		for _, next := range n.Successors(fwd, rev, c.internalOnly) {
			if c.members.Has(next) {
				continue
			}
			c.add(next, d+1)
			added = append(added, next)
			queue = append(queue, next)
		}
	}
	return added
}

// UnlinkedEdges returns the hole and warp edges of closure nodes that have
// no connection yet, in closure order
func (c *Closure) UnlinkedEdges() []Exit {
	var out []Exit
	for _, n := range c.Nodes {
		for _, se := range n.Static.Edges {
			if se.External() && n.LinkedEdge(se) == nil {
				out = append(out, Exit{Node: n, Static: se})
			}
		}
	}
	return out
}

// UnlinkedCollectables returns the empty item slots of closure nodes
func (c *Closure) UnlinkedCollectables() []Slot {
	var out []Slot
	for _, n := range c.Nodes {
		for _, sc := range n.Static.Collectables {
			if _, placed := n.Placed(sc); !placed {
				out = append(out, Slot{Node: n, Static: sc})
			}
		}
	}
	return out
}
