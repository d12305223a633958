// Package requirement implements the boolean formulas used to decide whether
// a player with given capabilities can traverse an edge or reach a node.
//
// A Requirement is one of a closed set of variants: Possible, Impossible,
// Conjunction, Disjunction, DashRequirement, SkillRequirement,
// KeyRequirement and FlagRequirement. Compound requirements should be built
// with And and Or, which normalise their children so that structurally equal
// formulas have identical keys regardless of construction order.
package requirement

import (
	"fmt"
	"math"
	"strings"
)

// impossibleComplexity sorts Impossible after every satisfiable requirement
const impossibleComplexity = math.MaxInt32

// Requirement is a boolean formula over Capabilities
type Requirement interface {
	// Able reports whether caps satisfies the requirement
	Able(caps Capabilities) bool
	// Conflicts returns the part of the requirement caps does not satisfy.
	// Possible means fully satisfied; Impossible means no addition to caps
	// could satisfy it. A key the player lacks is returned as-is, since a
	// key can still be placed.
	Conflicts(caps Capabilities) Requirement
	// Complexity is a structural size used to order searches
	Complexity() int
	// Key is a canonical structural encoding used for sorting and equality
	Key() string
	String() string

	isRequirement()
}

// Possible is always satisfied
type Possible struct{}

// Impossible is never satisfied
type Impossible struct{}

// Conjunction is satisfied when every child is. Build with And.
type Conjunction struct {
	Children []Requirement
}

// Disjunction is satisfied when any child is. Build with Or.
type Disjunction struct {
	Children []Requirement
}

// DashRequirement needs at least Dashes dashes
type DashRequirement struct {
	Dashes NumDashes
}

// SkillRequirement needs a player skill of at least Difficulty
type SkillRequirement struct {
	Difficulty Difficulty
}

// KeyRequirement needs a key to open the given keyhole
type KeyRequirement struct {
	KeyholeID int
}

// FlagRequirement needs a flag to be in a known state
type FlagRequirement struct {
	Flag string
	Set  bool
}

func (Possible) isRequirement()         {}
func (Impossible) isRequirement()       {}
func (Conjunction) isRequirement()      {}
func (Disjunction) isRequirement()      {}
func (DashRequirement) isRequirement()  {}
func (SkillRequirement) isRequirement() {}
func (KeyRequirement) isRequirement()   {}
func (FlagRequirement) isRequirement()  {}

func (Possible) Able(Capabilities) bool                  { return true }
func (Possible) Conflicts(Capabilities) Requirement      { return Possible{} }
func (Possible) Complexity() int                         { return 0 }
func (Possible) Key() string                             { return "possible" }
func (r Possible) String() string                        { return r.Key() }
func (Impossible) Able(Capabilities) bool                { return false }
func (Impossible) Conflicts(Capabilities) Requirement    { return Impossible{} }
func (Impossible) Complexity() int                       { return impossibleComplexity }
func (Impossible) Key() string                           { return "impossible" }
func (r Impossible) String() string                      { return r.Key() }

// Able reports whether every child is satisfied
func (r Conjunction) Able(caps Capabilities) bool {
	for _, c := range r.Children {
		if !c.Able(caps) {
			return false
		}
	}
	return true
}

// Conflicts returns the conjunction of the children's residuals
func (r Conjunction) Conflicts(caps Capabilities) Requirement {
	residual := make([]Requirement, 0, len(r.Children))
	for _, c := range r.Children {
		residual = append(residual, c.Conflicts(caps))
	}
	return And(residual...)
}

func (r Conjunction) Complexity() int { return sumComplexity(r.Children) }
func (r Conjunction) Key() string     { return joinKeys("and", r.Children) }
func (r Conjunction) String() string  { return r.Key() }

// Able reports whether any child is satisfied
func (r Disjunction) Able(caps Capabilities) bool {
	for _, c := range r.Children {
		if c.Able(caps) {
			return true
		}
	}
	return false
}

// Conflicts returns the disjunction of the children's residuals
func (r Disjunction) Conflicts(caps Capabilities) Requirement {
	residual := make([]Requirement, 0, len(r.Children))
	for _, c := range r.Children {
		residual = append(residual, c.Conflicts(caps))
	}
	return Or(residual...)
}

func (r Disjunction) Complexity() int { return sumComplexity(r.Children) }
func (r Disjunction) Key() string     { return joinKeys("or", r.Children) }
func (r Disjunction) String() string  { return r.Key() }

func (r DashRequirement) Able(caps Capabilities) bool { return caps.Dashes >= r.Dashes }

func (r DashRequirement) Conflicts(caps Capabilities) Requirement {
	if r.Able(caps) {
		return Possible{}
	}
	return Impossible{}
}

func (DashRequirement) Complexity() int  { return 1 }
func (r DashRequirement) Key() string    { return fmt.Sprintf("dashes:%d", r.Dashes) }
func (r DashRequirement) String() string { return "dashes=" + r.Dashes.String() }

func (r SkillRequirement) Able(caps Capabilities) bool { return caps.PlayerSkill >= r.Difficulty }

func (r SkillRequirement) Conflicts(caps Capabilities) Requirement {
	if r.Able(caps) {
		return Possible{}
	}
	return Impossible{}
}

func (SkillRequirement) Complexity() int  { return 1 }
func (r SkillRequirement) Key() string    { return fmt.Sprintf("skill:%d", r.Difficulty) }
func (r SkillRequirement) String() string { return "skill=" + r.Difficulty.String() }

func (r KeyRequirement) Able(caps Capabilities) bool { return caps.HasKey }

func (r KeyRequirement) Conflicts(caps Capabilities) Requirement {
	if caps.HasKey {
		return Possible{}
	}
	return r
}

func (KeyRequirement) Complexity() int  { return 1 }
func (r KeyRequirement) Key() string    { return fmt.Sprintf("key:%d", r.KeyholeID) }
func (r KeyRequirement) String() string { return r.Key() }

func (r FlagRequirement) Able(caps Capabilities) bool {
	set, known := caps.Flag(r.Flag)
	return known && set == r.Set
}

func (r FlagRequirement) Conflicts(caps Capabilities) Requirement {
	if r.Able(caps) {
		return Possible{}
	}
	return Impossible{}
}

func (FlagRequirement) Complexity() int { return 1 }

func (r FlagRequirement) Key() string {
	if r.Set {
		return "flag:" + r.Flag + "=1"
	}
	return "flag:" + r.Flag + "=0"
}

func (r FlagRequirement) String() string { return r.Key() }

func sumComplexity(children []Requirement) int {
	total := 0
	for _, c := range children {
		total += c.Complexity()
	}
	return total
}

func joinKeys(op string, children []Requirement) string {
	keys := make([]string, len(children))
	for i, c := range children {
		keys[i] = c.Key()
	}
	return op + "(" + strings.Join(keys, ",") + ")"
}
