package linked

import (
	"image"

	"github.com/lawnchairsociety/roomweaver/internal/geometry"
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/requirement"
)

// AvailableNewEdges lists the external edges a fresh placement of room could
// be entered through. Holes of kind None never qualify and Unknown holes
// only when allowUnknown is set. capsIn, when non-nil, must satisfy the
// way in and capsOut the way back out.
func AvailableNewEdges(room *library.StaticRoom, capsIn, capsOut *requirement.Capabilities, allowUnknown bool) []*library.StaticEdge {
	var out []*library.StaticEdge
	for _, e := range room.ExternalEdges() {
		switch e.Kind() {
		case geometry.HoleNone:
			continue
		case geometry.HoleUnknown:
			if !allowUnknown {
				continue
			}
		}
		if capsIn != nil && !e.ReqIn().Able(*capsIn) {
			continue
		}
		if capsOut != nil && !e.ReqOut().Able(*capsOut) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// JoinPosition returns where static must be placed so that its hole b lines
// up with hole a of the placed room r
func JoinPosition(r *Room, a *geometry.Hole, static *library.StaticRoom, b *geometry.Hole) (image.Point, bool) {
	off := geometry.Compatible(a, b)
	if off == geometry.Incompatible {
		return image.Point{}, false
	}

	p := r.Position
	switch a.Side {
	case geometry.Up:
		return image.Pt(p.X+off, p.Y-static.Height()), true
	case geometry.Down:
		return image.Pt(p.X+off, p.Y+r.Static.Height()), true
	case geometry.Left:
		return image.Pt(p.X-static.Width(), p.Y+off), true
	default:
		return image.Pt(p.X+r.Static.Width(), p.Y+off), true
	}
}

// warpGap is the horizontal space left between the map and a warp target
const warpGap = 8

// WarpPosition returns a spot right of the current map bounds for a room
// reached by warp
func (m *Map) WarpPosition() image.Point {
	b := m.Bounds()
	return image.Pt(b.Max.X+warpGap, b.Min.Y)
}
