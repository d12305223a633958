package library

import (
	"image"

	"github.com/lawnchairsociety/roomweaver/internal/geometry"
	"github.com/lawnchairsociety/roomweaver/internal/requirement"
)

// MainNode is the name of the node every room starts with
const MainNode = "main"

// StaticRoom is one authored room fragment. It is built once when the
// library loads and is read-only during generation.
type StaticRoom struct {
	Name   string
	Source string
	Mask   *geometry.Mask
	// Worth is a size-derived score used for length budgeting
	Worth float64
	// ReqEnd is the requirement to finish the level from this room;
	// Impossible for rooms that are not endings
	ReqEnd requirement.Requirement
	Hub    bool
	Start  bool
	// ExtraSpace holds room-local rectangles reserved outside the room
	// bounds, e.g. for camera or visual effects
	ExtraSpace   []image.Rectangle
	Holes        []*geometry.Hole
	Collectables []*StaticCollectable

	nodes     map[string]*StaticNode
	nodeOrder []*StaticNode
}

// Width returns the room width in tiles
func (r *StaticRoom) Width() int {
	return r.Mask.Width
}

// Height returns the room height in tiles
func (r *StaticRoom) Height() int {
	return r.Mask.Height
}

// Node returns the node with the given name, or nil
func (r *StaticRoom) Node(name string) *StaticNode {
	return r.nodes[name]
}

// Nodes returns the room's nodes in declaration order, main first
func (r *StaticRoom) Nodes() []*StaticNode {
	return r.nodeOrder
}

// IsEnd reports whether the level can be finished from this room
func (r *StaticRoom) IsEnd() bool {
	_, impossible := r.ReqEnd.(requirement.Impossible)
	return !impossible
}

// HasFlagSetters reports whether any node in the room changes a flag
func (r *StaticRoom) HasFlagSetters() bool {
	for _, n := range r.nodeOrder {
		if len(n.FlagSetters) > 0 {
			return true
		}
	}
	return false
}

// ExternalEdges returns every hole and warp edge in node order
func (r *StaticRoom) ExternalEdges() []*StaticEdge {
	var edges []*StaticEdge
	for _, n := range r.nodeOrder {
		for _, e := range n.Edges {
			if e.External() {
				edges = append(edges, e)
			}
		}
	}
	return edges
}

// HoleEdge returns the edge leading out through the given hole, or nil
func (r *StaticRoom) HoleEdge(h *geometry.Hole) *StaticEdge {
	for _, n := range r.nodeOrder {
		for _, e := range n.Edges {
			if e.HoleTarget == h {
				return e
			}
		}
	}
	return nil
}

func (r *StaticRoom) addNode(name string) *StaticNode {
	n := &StaticNode{Name: name, Room: r}
	r.nodes[name] = n
	r.nodeOrder = append(r.nodeOrder, n)
	return n
}

// FlagSetter records that reaching a node sets a flag to a value
type FlagSetter struct {
	Flag  string
	Value bool
}

// StaticNode is a named region inside a room
type StaticNode struct {
	Name         string
	Room         *StaticRoom
	Edges        []*StaticEdge
	Collectables []*StaticCollectable
	FlagSetters  []FlagSetter
}

// removeEdge detaches e from the node, preserving order
func (n *StaticNode) removeEdge(e *StaticEdge) {
	for i, existing := range n.Edges {
		if existing == e {
			n.Edges = append(n.Edges[:i], n.Edges[i+1:]...)
			return
		}
	}
}

func (n *StaticNode) removeCollectable(c *StaticCollectable) {
	for i, existing := range n.Collectables {
		if existing == c {
			n.Collectables = append(n.Collectables[:i], n.Collectables[i+1:]...)
			return
		}
	}
}

// StaticCollectable is an item slot inside a room
type StaticCollectable struct {
	Index    int
	Position image.Point
	MustFly  bool
	Node     *StaticNode
}

// edgeReqs is the shared requirement pair of one physical connection.
// in is the requirement to travel toward the owning side of the edge,
// out the requirement to travel away from it.
type edgeReqs struct {
	in, out requirement.Requirement
}

// StaticEdge leaves FromNode toward exactly one of: another node of the same
// room (NodeTarget), a hole in the room boundary (HoleTarget) or a custom
// warp (Warp). Node-to-node edges come in twin pairs that share their
// requirements, so each physical connection has a single source of truth.
type StaticEdge struct {
	FromNode   *StaticNode
	NodeTarget *StaticNode
	HoleTarget *geometry.Hole
	// Warp names a custom warp; empty for other edges
	Warp       string
	CustomWarp bool

	reqs     *edgeReqs
	reversed bool
	twin     *StaticEdge
}

// ReqIn is the requirement to traverse the edge into FromNode
func (e *StaticEdge) ReqIn() requirement.Requirement {
	if e.reversed {
		return e.reqs.out
	}
	return e.reqs.in
}

// ReqOut is the requirement to traverse the edge out of FromNode
func (e *StaticEdge) ReqOut() requirement.Requirement {
	if e.reversed {
		return e.reqs.in
	}
	return e.reqs.out
}

// Reversed returns the twin edge seen from NodeTarget, or nil for hole and
// warp edges
func (e *StaticEdge) Reversed() *StaticEdge {
	return e.twin
}

// Internal reports whether the edge stays inside the room
func (e *StaticEdge) Internal() bool {
	return e.NodeTarget != nil
}

// External reports whether the edge leaves the room through a hole or warp
func (e *StaticEdge) External() bool {
	return e.HoleTarget != nil || e.CustomWarp
}

// Kind returns the hole kind for hole edges, HoleInOut for warps and
// internal edges
func (e *StaticEdge) Kind() geometry.HoleKind {
	if e.HoleTarget != nil {
		return e.HoleTarget.Kind
	}
	return geometry.HoleInOut
}

// String returns a compact description for logging
func (e *StaticEdge) String() string {
	from := e.FromNode.Room.Name + "/" + e.FromNode.Name
	switch {
	case e.NodeTarget != nil:
		return from + "->" + e.NodeTarget.Name
	case e.HoleTarget != nil:
		return from + "->" + e.HoleTarget.String()
	default:
		return from + "->warp:" + e.Warp
	}
}

func newExternalEdge(from *StaticNode, in, out requirement.Requirement) *StaticEdge {
	e := &StaticEdge{
		FromNode: from,
		reqs:     &edgeReqs{in: in, out: out},
	}
	from.Edges = append(from.Edges, e)
	return e
}

// linkNodes creates a twin pair between a and b. out is the requirement to
// go from a to b, in the requirement to go from b to a.
func linkNodes(a, b *StaticNode, in, out requirement.Requirement) *StaticEdge {
	reqs := &edgeReqs{in: in, out: out}
	forward := &StaticEdge{FromNode: a, NodeTarget: b, reqs: reqs}
	backward := &StaticEdge{FromNode: b, NodeTarget: a, reqs: reqs, reversed: true}
	forward.twin = backward
	backward.twin = forward
	a.Edges = append(a.Edges, forward)
	b.Edges = append(b.Edges, backward)
	return forward
}
