package library

import (
	"fmt"
	"image"
	"math"

	"github.com/lawnchairsociety/roomweaver/internal/geometry"
	"github.com/lawnchairsociety/roomweaver/internal/requirement"
)

// worthDivisor scales sqrt(area) into worth units
const worthDivisor = 40.0

// Split directions. The named direction is the one-way route through the
// split: the node keeps the hole at the start of the route and the new node
// gets the other one.
const (
	SplitBottomToTop = "bottom_to_top"
	SplitTopToBottom = "top_to_bottom"
	SplitLeftToRight = "left_to_right"
	SplitRightToLeft = "right_to_left"
)

// authoredHole remembers which node claimed a hole, for nearest-node inference
type authoredHole struct {
	hole      *geometry.Hole
	node      *StaticNode
	nodeIndex int
}

type builder struct {
	cfg      RoomYAML
	room     *StaticRoom
	claimed  map[*geometry.Hole]bool
	authored []authoredHole
}

// BuildRoom constructs the static graph of one room from its authored config.
// Any authoring defect is returned as a *ConfigError.
func BuildRoom(cfg RoomYAML, defaultSource string) (*StaticRoom, error) {
	if cfg.Name == "" {
		return nil, &ConfigError{Field: "name", Msg: "room has no name"}
	}

	b := &builder{cfg: cfg, claimed: make(map[*geometry.Hole]bool)}

	mask, err := geometry.ParseMask(cfg.Tiles)
	if err != nil {
		return nil, b.errorf("tiles", "%v", err)
	}

	source := cfg.Source
	if source == "" {
		source = defaultSource
	}

	b.room = &StaticRoom{
		Name:   cfg.Name,
		Source: source,
		Mask:   mask,
		Hub:    cfg.Hub,
		Start:  cfg.Start,
		Holes:  mask.FindHoles(),
		nodes:  make(map[string]*StaticNode),
	}

	steps := []func() error{
		b.buildWorth,
		b.buildEnd,
		b.buildExtraSpace,
		b.buildNodes,
		b.inferUnknownHoles,
		b.buildInternalEdges,
		b.buildWarps,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	return b.room, nil
}

func (b *builder) errorf(field, format string, args ...any) error {
	return &ConfigError{Room: b.cfg.Name, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func (b *builder) buildWorth() error {
	if b.cfg.Worth != nil {
		if *b.cfg.Worth < 0 {
			return b.errorf("worth", "negative worth %v", *b.cfg.Worth)
		}
		b.room.Worth = *b.cfg.Worth
		return nil
	}
	area := float64(b.room.Mask.Width * b.room.Mask.Height)
	b.room.Worth = math.Sqrt(area) / worthDivisor
	return nil
}

func (b *builder) buildEnd() error {
	req, err := b.cfg.End.Build(requirement.Impossible{})
	if err != nil {
		return b.errorf("end", "%v", err)
	}
	b.room.ReqEnd = req
	return nil
}

func (b *builder) buildExtraSpace() error {
	for i, r := range b.cfg.ExtraSpace {
		if r.W <= 0 || r.H <= 0 {
			return b.errorf(fmt.Sprintf("extra_space[%d]", i), "empty rectangle %dx%d", r.W, r.H)
		}
		b.room.ExtraSpace = append(b.room.ExtraSpace, image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H))
	}
	return nil
}

// buildNodes declares main and every subroom, then attaches the holes,
// collectables and flag setters each one owns
func (b *builder) buildNodes() error {
	main := b.room.addNode(MainNode)
	for i, sub := range b.cfg.Subrooms {
		field := fmt.Sprintf("subrooms[%d]", i)
		if sub.Name == "" {
			return b.errorf(field, "subroom has no name")
		}
		if b.room.Node(sub.Name) != nil {
			return b.errorf(field, "duplicate node name %q", sub.Name)
		}
		b.room.addNode(sub.Name)
	}

	if err := b.attach(main, 0, "", b.cfg.Holes, b.cfg.Collectables, b.cfg.Flags); err != nil {
		return err
	}
	for i, sub := range b.cfg.Subrooms {
		prefix := fmt.Sprintf("subrooms[%d].", i)
		if err := b.attach(b.room.Node(sub.Name), i+1, prefix, sub.Holes, sub.Collectables, sub.Flags); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) attach(node *StaticNode, nodeIndex int, prefix string, holes []HoleYAML, items []CollectableYAML, flags []FlagSetterYAML) error {
	for i, hy := range holes {
		if err := b.claimHole(node, nodeIndex, hy, fmt.Sprintf("%sholes[%d]", prefix, i)); err != nil {
			return err
		}
	}

	bounds := b.room.Mask.Bounds()
	for i, cy := range items {
		pos := image.Pt(cy.X, cy.Y)
		if !pos.In(bounds) {
			return b.errorf(fmt.Sprintf("%scollectables[%d]", prefix, i), "position %v outside room %v", pos, bounds)
		}
		c := &StaticCollectable{
			Index:    len(b.room.Collectables),
			Position: pos,
			MustFly:  cy.MustFly,
			Node:     node,
		}
		b.room.Collectables = append(b.room.Collectables, c)
		node.Collectables = append(node.Collectables, c)
	}

	for i, fy := range flags {
		if fy.Flag == "" {
			return b.errorf(fmt.Sprintf("%sflags[%d]", prefix, i), "flag setter has no flag name")
		}
		node.FlagSetters = append(node.FlagSetters, FlagSetter{Flag: fy.Flag, Value: fy.Set})
	}
	return nil
}

// claimHole matches an authored hole entry against the detected holes by
// side and ordinal, applies its edits and creates the hole edge
func (b *builder) claimHole(node *StaticNode, nodeIndex int, hy HoleYAML, field string) error {
	side, err := geometry.ParseSide(hy.Side)
	if err != nil {
		return b.errorf(field, "%v", err)
	}

	candidates := geometry.HolesOnSide(b.room.Holes, side)
	if hy.Idx < 0 || hy.Idx >= len(candidates) {
		return b.errorf(field, "unmatched hole reference %s #%d (side has %d holes)", side, hy.Idx, len(candidates))
	}
	h := candidates[hy.Idx]
	if b.claimed[h] {
		return b.errorf(field, "hole %s #%d is claimed twice", side, hy.Idx)
	}

	kind, err := geometry.ParseHoleKind(hy.Kind)
	if err != nil {
		return b.errorf(field, "%v", err)
	}
	h.Kind = kind
	if hy.Launch != nil {
		h.Launch = *hy.Launch
	}
	if hy.LowBound != nil {
		h.LowBound = *hy.LowBound
	}
	if hy.HighBound != nil {
		h.HighBound = *hy.HighBound
	}
	if hy.HighOpen != nil {
		h.HighOpen = *hy.HighOpen
	}
	if err := h.Validate(); err != nil {
		return b.errorf(field, "%v", err)
	}

	in, err := hy.ReqIn.Build(requirement.Possible{})
	if err != nil {
		return b.errorf(field+".req_in", "%v", err)
	}
	out, err := hy.ReqOut.Build(requirement.Possible{})
	if err != nil {
		return b.errorf(field+".req_out", "%v", err)
	}
	in, out = kindRequirements(kind, in, out)

	e := newExternalEdge(node, in, out)
	e.HoleTarget = h

	b.claimed[h] = true
	b.authored = append(b.authored, authoredHole{hole: h, node: node, nodeIndex: nodeIndex})
	return nil
}

// kindRequirements applies the implicit rules of a hole kind on top of the
// authored requirements
func kindRequirements(kind geometry.HoleKind, in, out requirement.Requirement) (requirement.Requirement, requirement.Requirement) {
	switch kind {
	case geometry.HoleIn:
		out = requirement.Impossible{}
	case geometry.HoleOut:
		in = requirement.Impossible{}
	case geometry.HoleNone:
		in, out = requirement.Impossible{}, requirement.Impossible{}
	}
	return in, out
}

// inferUnknownHoles marks every unclaimed hole Unknown and gives it to the
// node owning the nearest authored hole. Distance is Manhattan between hole
// midpoints; ties go to the node declared first.
func (b *builder) inferUnknownHoles() error {
	w, h := b.room.Mask.Width, b.room.Mask.Height
	main := b.room.Node(MainNode)

	for _, hole := range b.room.Holes {
		if b.claimed[hole] {
			continue
		}
		hole.Kind = geometry.HoleUnknown

		owner := main
		bestDist, bestIndex := math.MaxInt, math.MaxInt
		mid := hole.Midpoint(w, h)
		for _, a := range b.authored {
			d := manhattan(mid, a.hole.Midpoint(w, h))
			if d < bestDist || (d == bestDist && a.nodeIndex < bestIndex) {
				owner, bestDist, bestIndex = a.node, d, a.nodeIndex
			}
		}

		e := newExternalEdge(owner, requirement.Possible{}, requirement.Possible{})
		e.HoleTarget = hole
	}
	return nil
}

func manhattan(a, b image.Point) int {
	d := a.Sub(b)
	return abs(d.X) + abs(d.Y)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func (b *builder) buildInternalEdges() error {
	for i, ie := range b.cfg.InternalEdges {
		field := fmt.Sprintf("internal_edges[%d]", i)
		var err error
		switch {
		case ie.Split != "" && ie.Collectable != nil:
			err = b.errorf(field, "split and collectable cannot be combined")
		case ie.Split != "":
			err = b.split(ie, field)
		case ie.Collectable != nil:
			err = b.splitCollectable(ie, field)
		default:
			err = b.link(ie, field)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) fromNode(ie InternalEdgeYAML, field string) (*StaticNode, error) {
	name := ie.From
	if name == "" {
		name = MainNode
	}
	n := b.room.Node(name)
	if n == nil {
		return nil, b.errorf(field, "unknown node %q", name)
	}
	return n, nil
}

func (b *builder) newNodeName(name, field string) error {
	if name == "" {
		return b.errorf(field, "missing target node name")
	}
	if b.room.Node(name) != nil {
		return b.errorf(field, "duplicate node name %q", name)
	}
	return nil
}

func (b *builder) edgeRequirements(ie InternalEdgeYAML, field string, defIn requirement.Requirement) (requirement.Requirement, requirement.Requirement, error) {
	in, err := ie.ReqIn.Build(defIn)
	if err != nil {
		return nil, nil, b.errorf(field+".req_in", "%v", err)
	}
	out, err := ie.ReqOut.Build(requirement.Possible{})
	if err != nil {
		return nil, nil, b.errorf(field+".req_out", "%v", err)
	}
	return in, out, nil
}

// link joins two existing nodes
func (b *builder) link(ie InternalEdgeYAML, field string) error {
	from, err := b.fromNode(ie, field)
	if err != nil {
		return err
	}
	to := b.room.Node(ie.To)
	if to == nil {
		return b.errorf(field, "unknown node %q", ie.To)
	}
	if to == from {
		return b.errorf(field, "node %q linked to itself", ie.To)
	}
	in, out, err := b.edgeRequirements(ie, field, requirement.Possible{})
	if err != nil {
		return err
	}
	linkNodes(from, to, in, out)
	return nil
}

// split carves a new node out of a node with exactly two hole edges. The
// node keeps the hole the route starts from; the forward edge defaults to
// Possible and the way back to Impossible.
func (b *builder) split(ie InternalEdgeYAML, field string) error {
	from, err := b.fromNode(ie, field)
	if err != nil {
		return err
	}
	if err := b.newNodeName(ie.To, field); err != nil {
		return err
	}

	var holeEdges []*StaticEdge
	for _, e := range from.Edges {
		if e.HoleTarget != nil {
			holeEdges = append(holeEdges, e)
		}
	}
	if len(holeEdges) != 2 {
		return b.errorf(field, "invalid split target: node %q has %d hole edges, want 2", from.Name, len(holeEdges))
	}

	score, ok := splitScore(ie.Split)
	if !ok {
		return b.errorf(field, "unknown split direction %q", ie.Split)
	}
	w, h := b.room.Mask.Width, b.room.Mask.Height
	keep, move := holeEdges[0], holeEdges[1]
	if score(move.HoleTarget.Midpoint(w, h)) > score(keep.HoleTarget.Midpoint(w, h)) {
		keep, move = move, keep
	}

	in, out, err := b.edgeRequirements(ie, field, requirement.Impossible{})
	if err != nil {
		return err
	}

	to := b.room.addNode(ie.To)
	from.removeEdge(move)
	move.FromNode = to
	to.Edges = append(to.Edges, move)
	linkNodes(from, to, in, out)
	return nil
}

// splitScore ranks hole midpoints so that the highest score is kept by the
// original node
func splitScore(direction string) (func(image.Point) int, bool) {
	switch direction {
	case SplitBottomToTop:
		return func(p image.Point) int { return p.Y }, true
	case SplitTopToBottom:
		return func(p image.Point) int { return -p.Y }, true
	case SplitLeftToRight:
		return func(p image.Point) int { return -p.X }, true
	case SplitRightToLeft:
		return func(p image.Point) int { return p.X }, true
	}
	return nil, false
}

// splitCollectable moves one item slot into a node of its own
func (b *builder) splitCollectable(ie InternalEdgeYAML, field string) error {
	idx := *ie.Collectable
	if idx < 0 || idx >= len(b.room.Collectables) {
		return b.errorf(field, "unknown collectable index %d", idx)
	}
	c := b.room.Collectables[idx]
	owner := c.Node
	if ie.From != "" && ie.From != owner.Name {
		return b.errorf(field, "collectable %d belongs to node %q, not %q", idx, owner.Name, ie.From)
	}

	name := ie.To
	if name == "" {
		name = fmt.Sprintf("collectable-%d", idx)
	}
	if err := b.newNodeName(name, field); err != nil {
		return err
	}

	in, out, err := b.edgeRequirements(ie, field, requirement.Possible{})
	if err != nil {
		return err
	}

	n := b.room.addNode(name)
	owner.removeCollectable(c)
	c.Node = n
	n.Collectables = append(n.Collectables, c)
	linkNodes(owner, n, in, out)
	return nil
}

func (b *builder) buildWarps() error {
	seen := make(map[string]bool)
	for i, wy := range b.cfg.Warps {
		field := fmt.Sprintf("warps[%d]", i)
		if wy.Name == "" {
			return b.errorf(field, "warp has no name")
		}
		if seen[wy.Name] {
			return b.errorf(field, "duplicate warp %q", wy.Name)
		}
		seen[wy.Name] = true

		nodeName := wy.Node
		if nodeName == "" {
			nodeName = MainNode
		}
		node := b.room.Node(nodeName)
		if node == nil {
			return b.errorf(field, "missing warp target node %q", nodeName)
		}

		in, err := wy.ReqIn.Build(requirement.Possible{})
		if err != nil {
			return b.errorf(field+".req_in", "%v", err)
		}
		out, err := wy.ReqOut.Build(requirement.Possible{})
		if err != nil {
			return b.errorf(field+".req_out", "%v", err)
		}

		e := newExternalEdge(node, in, out)
		e.Warp = wy.Name
		e.CustomWarp = true
	}
	return nil
}
