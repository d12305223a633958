package linked

import (
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/requirement"
)

// Node is one region of a placed room
type Node struct {
	Static       *library.StaticNode
	Room         *Room
	Edges        []*Edge
	Collectables map[*library.StaticCollectable]Placement
}

// Edge is a connection made between two placed nodes, either a hole-to-hole
// join or a warp. ExtraAB and ExtraBA are optional requirement overlays for
// travel from A to B and from B to A.
type Edge struct {
	NodeA, NodeB     *Node
	StaticA, StaticB *library.StaticEdge
	ExtraAB, ExtraBA requirement.Requirement
}

// Other returns the node on the far side of the edge from n
func (e *Edge) Other(n *Node) *Node {
	if n == e.NodeA {
		return e.NodeB
	}
	return e.NodeA
}

// StaticFor returns the static edge on n's side of the connection
func (e *Edge) StaticFor(n *Node) *library.StaticEdge {
	if n == e.NodeA {
		return e.StaticA
	}
	return e.StaticB
}

// Forward is the requirement to travel from n across the edge
func (e *Edge) Forward(n *Node) requirement.Requirement {
	if n == e.NodeA {
		return requirement.And(e.StaticA.ReqOut(), e.StaticB.ReqIn(), e.ExtraAB)
	}
	return requirement.And(e.StaticB.ReqOut(), e.StaticA.ReqIn(), e.ExtraBA)
}

// Reverse is the requirement to come back across the edge to n
func (e *Edge) Reverse(n *Node) requirement.Requirement {
	return e.Forward(e.Other(n))
}

// Connect links two placed nodes through their static external edges
func (m *Map) Connect(a *Node, sa *library.StaticEdge, b *Node, sb *library.StaticEdge) *Edge {
	e := &Edge{NodeA: a, NodeB: b, StaticA: sa, StaticB: sb}
	a.Edges = append(a.Edges, e)
	b.Edges = append(b.Edges, e)
	return e
}

// Disconnect removes an edge from both of its nodes
func (m *Map) Disconnect(e *Edge) {
	e.NodeA.removeEdge(e)
	e.NodeB.removeEdge(e)
}

func (n *Node) removeEdge(e *Edge) {
	for i, existing := range n.Edges {
		if existing == e {
			n.Edges = append(n.Edges[:i], n.Edges[i+1:]...)
			return
		}
	}
}

// LinkedEdge returns the placed edge using static edge s, or nil
func (n *Node) LinkedEdge(s *library.StaticEdge) *Edge {
	for _, e := range n.Edges {
		if e.StaticFor(n) == s {
			return e
		}
	}
	return nil
}

// Place assigns an item to a slot of this node
func (n *Node) Place(c *library.StaticCollectable, p Placement) {
	n.Collectables[c] = p
}

// Unplace clears a slot
func (n *Node) Unplace(c *library.StaticCollectable) {
	delete(n.Collectables, c)
}

// Placed returns the item assigned to a slot, if any
func (n *Node) Placed(c *library.StaticCollectable) (Placement, bool) {
	p, ok := n.Collectables[c]
	return p, ok
}

func (n *Node) String() string {
	return n.Room.Static.Name + "/" + n.Static.Name
}
