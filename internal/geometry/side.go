package geometry

import "fmt"

// Side identifies one edge of a rectangular room
type Side int

const (
	Up Side = iota
	Down
	Left
	Right
)

// String returns the string representation of a Side
func (s Side) String() string {
	switch s {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Opposite returns the side a neighbouring room must present to join this one
func (s Side) Opposite() Side {
	switch s {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	default:
		return s
	}
}

// Vertical reports whether holes on this side run along the x axis
func (s Side) Vertical() bool {
	return s == Up || s == Down
}

// AllSides returns the four sides in declaration order
func AllSides() []Side {
	return []Side{Up, Down, Left, Right}
}

// ParseSide converts a config string to a Side
func ParseSide(s string) (Side, error) {
	switch s {
	case "up", "top":
		return Up, nil
	case "down", "bottom":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	default:
		return Up, fmt.Errorf("unknown side %q", s)
	}
}

// HoleKind describes which directions a hole may be traversed in
type HoleKind int

const (
	HoleNone    HoleKind = iota // Never traversable
	HoleIn                      // Entry only
	HoleOut                     // Exit only
	HoleInOut                   // Both directions
	HoleUnknown                 // Not authored; inferred from geometry
)

// String returns the string representation of a HoleKind
func (k HoleKind) String() string {
	switch k {
	case HoleNone:
		return "none"
	case HoleIn:
		return "in"
	case HoleOut:
		return "out"
	case HoleInOut:
		return "inout"
	case HoleUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// ParseHoleKind converts a config string to a HoleKind
func ParseHoleKind(s string) (HoleKind, error) {
	switch s {
	case "none":
		return HoleNone, nil
	case "in":
		return HoleIn, nil
	case "out":
		return HoleOut, nil
	case "inout", "", "both":
		return HoleInOut, nil
	case "unknown":
		return HoleUnknown, nil
	default:
		return HoleNone, fmt.Errorf("unknown hole kind %q", s)
	}
}
