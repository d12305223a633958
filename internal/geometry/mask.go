package geometry

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrEmptyMask  = errors.New("geometry: empty tile mask")
	ErrRaggedMask = errors.New("geometry: tile rows have different widths")
)

// Mask is the solid-tile layout of a room. Solid tiles are walls; every
// other tile is passable.
type Mask struct {
	Width, Height int
	solid         []bool
}

// ParseMask builds a Mask from rows of '#' (solid) and '.' (open) characters
func ParseMask(rows []string) (*Mask, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyMask
	}

	m := &Mask{
		Width:  len(rows[0]),
		Height: len(rows),
		solid:  make([]bool, len(rows)*len(rows[0])),
	}

	for y, row := range rows {
		if len(row) != m.Width {
			return nil, fmt.Errorf("%w: row %d has %d tiles, want %d", ErrRaggedMask, y, len(row), m.Width)
		}
		for x, c := range []byte(row) {
			switch c {
			case '#':
				m.solid[y*m.Width+x] = true
			case '.', ' ':
			default:
				return nil, fmt.Errorf("geometry: row %d column %d: unexpected tile %q", y, x, c)
			}
		}
	}

	return m, nil
}

// Solid reports whether the tile at (x, y) is a wall. Tiles outside the
// mask are treated as solid.
func (m *Mask) Solid(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return true
	}
	return m.solid[y*m.Width+x]
}

// Bounds returns the mask rectangle anchored at the origin
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// FindHoles returns every maximal run of open tiles along each room edge.
// Holes are grouped by side in AllSides order and sorted by position within
// a side, so the ordinal of a hole within its side is stable.
func (m *Mask) FindHoles() []*Hole {
	var holes []*Hole
	for _, side := range AllSides() {
		holes = append(holes, m.holesOn(side)...)
	}
	return holes
}

func (m *Mask) holesOn(side Side) []*Hole {
	length := m.Height
	if side.Vertical() {
		length = m.Width
	}

	var holes []*Hole
	start := -1
	for i := 0; i <= length; i++ {
		open := i < length && !m.Solid(m.edgeTile(side, i))
		if open && start < 0 {
			start = i
		}
		if !open && start >= 0 {
			holes = append(holes, NewHole(side, start, i-1, i == length))
			start = -1
		}
	}
	return holes
}

// edgeTile maps an index along a side to tile coordinates
func (m *Mask) edgeTile(side Side, i int) (int, int) {
	switch side {
	case Up:
		return i, 0
	case Down:
		return i, m.Height - 1
	case Left:
		return 0, i
	default:
		return m.Width - 1, i
	}
}

// HolesOnSide filters holes down to a single side, preserving order
func HolesOnSide(holes []*Hole, side Side) []*Hole {
	var out []*Hole
	for _, h := range holes {
		if h.Side == side {
			out = append(out, h)
		}
	}
	return out
}
