package requirement

import "fmt"

// NumDashes is the number of mid-air dashes available to the player
type NumDashes int

const (
	DashesZero NumDashes = iota
	DashesOne
	DashesTwo
)

// String returns the string representation of a NumDashes
func (d NumDashes) String() string {
	switch d {
	case DashesZero:
		return "zero"
	case DashesOne:
		return "one"
	case DashesTwo:
		return "two"
	default:
		return "unknown"
	}
}

// ParseDashes converts a config string to NumDashes
func ParseDashes(s string) (NumDashes, error) {
	switch s {
	case "zero", "0":
		return DashesZero, nil
	case "one", "1", "":
		return DashesOne, nil
	case "two", "2":
		return DashesTwo, nil
	default:
		return DashesZero, fmt.Errorf("unknown dash count %q", s)
	}
}

// Difficulty is a skill tier, ordered from easiest to hardest
type Difficulty int

const (
	Easy Difficulty = iota
	Normal
	Hard
	Expert
	Perfect
)

// String returns the string representation of a Difficulty
func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Normal:
		return "normal"
	case Hard:
		return "hard"
	case Expert:
		return "expert"
	case Perfect:
		return "perfect"
	default:
		return "unknown"
	}
}

// ParseDifficulty converts a config string to a Difficulty
func ParseDifficulty(s string) (Difficulty, error) {
	switch s {
	case "easy":
		return Easy, nil
	case "normal", "":
		return Normal, nil
	case "hard":
		return Hard, nil
	case "expert":
		return Expert, nil
	case "perfect":
		return Perfect, nil
	default:
		return Easy, fmt.Errorf("unknown difficulty %q", s)
	}
}

// Capabilities is what the traveling player currently has. It is a value
// type; the With* helpers return modified copies.
type Capabilities struct {
	Dashes      NumDashes
	PlayerSkill Difficulty
	HasKey      bool
	// Flags maps flag names to their known state. A flag missing from the
	// map has an unknown state and satisfies no FlagRequirement.
	Flags map[string]bool
}

// WithKey returns a copy holding a key
func (c Capabilities) WithKey() Capabilities {
	c.HasKey = true
	return c
}

// WithoutKey returns a copy without a key
func (c Capabilities) WithoutKey() Capabilities {
	c.HasKey = false
	return c
}

// WithFlags returns a copy with the given flag states layered on top
func (c Capabilities) WithFlags(flags map[string]bool) Capabilities {
	merged := make(map[string]bool, len(c.Flags)+len(flags))
	for k, v := range c.Flags {
		merged[k] = v
	}
	for k, v := range flags {
		merged[k] = v
	}
	c.Flags = merged
	return c
}

// WithoutFlags returns a copy in which every flag state is unknown
func (c Capabilities) WithoutFlags() Capabilities {
	c.Flags = nil
	return c
}

// Flag returns the state of a flag and whether it is known
func (c Capabilities) Flag(name string) (set bool, known bool) {
	set, known = c.Flags[name]
	return set, known
}

// String returns a compact description for logging
func (c Capabilities) String() string {
	return fmt.Sprintf("dashes=%s skill=%s key=%t flags=%d", c.Dashes, c.PlayerSkill, c.HasKey, len(c.Flags))
}
