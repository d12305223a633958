package geometry

import (
	"fmt"
	"image"
	"math"
)

// Incompatible is returned by Compatible when two holes cannot be joined.
// It is math.MinInt, whose negation wraps to itself.
const Incompatible = math.MinInt

// tallEnough is the size above which a horizontal hole tolerates a mismatched partner
const tallEnough = 3

// NoLaunch marks a hole without launch metadata
const NoLaunch = -1

// Hole is a contiguous opening on one side of a room.
// Bounds are tile indices along the side. A LowBound of 0 means the hole is
// open toward the low end of the side; HighOpen means it runs to the high end.
type Hole struct {
	Side      Side
	LowBound  int
	HighBound int
	HighOpen  bool
	Kind      HoleKind
	Launch    int
}

// NewHole creates an InOut hole with no launch metadata
func NewHole(side Side, low, high int, highOpen bool) *Hole {
	return &Hole{
		Side:      side,
		LowBound:  low,
		HighBound: high,
		HighOpen:  highOpen,
		Kind:      HoleInOut,
		Launch:    NoLaunch,
	}
}

// Size returns the number of tiles spanned by the hole
func (h *Hole) Size() int {
	return h.HighBound - h.LowBound + 1
}

// LowOpen reports whether the hole reaches the low end of its side
func (h *Hole) LowOpen() bool {
	return h.LowBound == 0
}

// BothOpen reports whether the hole spans the whole side
func (h *Hole) BothOpen() bool {
	return h.LowOpen() && h.HighOpen
}

// HalfOpen reports whether exactly one end of the hole is open
func (h *Hole) HalfOpen() bool {
	return h.LowOpen() != h.HighOpen
}

// Closed reports whether neither end of the hole is open
func (h *Hole) Closed() bool {
	return !h.LowOpen() && !h.HighOpen
}

// Validate checks the bound invariant
func (h *Hole) Validate() error {
	if h.LowBound < 0 {
		return fmt.Errorf("hole %s: negative low bound %d", h, h.LowBound)
	}
	if h.LowBound > h.HighBound {
		return fmt.Errorf("hole %s: low bound %d exceeds high bound %d", h, h.LowBound, h.HighBound)
	}
	return nil
}

// Midpoint returns the centre of the hole in room-local tile coordinates
// for a room of the given size.
func (h *Hole) Midpoint(width, height int) image.Point {
	mid := (h.LowBound + h.HighBound) / 2
	switch h.Side {
	case Up:
		return image.Pt(mid, 0)
	case Down:
		return image.Pt(mid, height)
	case Left:
		return image.Pt(0, mid)
	default:
		return image.Pt(width, mid)
	}
}

// String returns a compact description like "down[3..6)" for debugging
func (h *Hole) String() string {
	lo := "["
	if h.LowOpen() {
		lo = "("
	}
	hi := "]"
	if h.HighOpen {
		hi = ")"
	}
	return fmt.Sprintf("%s%s%d..%d%s", h.Side, lo, h.LowBound, h.HighBound, hi)
}

// Compatible reports whether hole a can be joined to hole b, which must sit on
// the opposite side of a neighbouring room. The result is the offset to add to
// a's room position along the shared axis to obtain b's room position, or
// Incompatible.
func Compatible(a, b *Hole) int {
	if b.Side != a.Side.Opposite() {
		return Incompatible
	}
	switch a.Side {
	case Up, Left:
		return -Compatible(b, a)
	case Down:
		return verticalOffset(a, b)
	default:
		return horizontalOffset(a, b)
	}
}

// verticalOffset joins a Down hole to an Up hole
func verticalOffset(a, b *Hole) int {
	if a.BothOpen() || b.BothOpen() {
		return bothOpenOffset(a, b)
	}
	if a.HalfOpen() || b.HalfOpen() {
		if !a.HalfOpen() || !b.HalfOpen() || a.LowOpen() != b.LowOpen() {
			return Incompatible
		}
		// align the closed end
		if a.LowOpen() {
			return a.HighBound - b.HighBound
		}
		return a.LowBound - b.LowBound
	}
	if a.Size() != b.Size() {
		return Incompatible
	}
	return a.LowBound - b.LowBound
}

// horizontalOffset joins a Right hole to a Left hole. The high end of a
// horizontal hole is the bottom of the room, so floors are aligned.
func horizontalOffset(a, b *Hole) int {
	if a.BothOpen() || b.BothOpen() {
		return bothOpenOffset(a, b)
	}
	if a.HighOpen || b.HighOpen {
		if !a.HighOpen || !b.HighOpen {
			return Incompatible
		}
		return a.HighBound - b.HighBound
	}
	if a.LowOpen() || b.LowOpen() {
		if a.LowOpen() != b.LowOpen() {
			closed := a
			if a.LowOpen() {
				closed = b
			}
			if closed.Size() <= tallEnough {
				return Incompatible
			}
		}
		return a.HighBound - b.HighBound
	}
	if a.Size() != b.Size() && (a.Size() <= tallEnough || b.Size() <= tallEnough) {
		return Incompatible
	}
	return a.HighBound - b.HighBound
}

func bothOpenOffset(a, b *Hole) int {
	if a.BothOpen() && b.BothOpen() && a.Size() == b.Size() {
		return 0
	}
	return Incompatible
}
