package library

import (
	"fmt"

	"github.com/lawnchairsociety/roomweaver/internal/requirement"
)

// LibraryYAML represents one room library file
type LibraryYAML struct {
	// Source is the default source set for rooms that do not name one
	Source string     `yaml:"source"`
	Rooms  []RoomYAML `yaml:"rooms"`
}

// RoomYAML represents an authored room in the YAML config
type RoomYAML struct {
	Name          string             `yaml:"name"`
	Source        string             `yaml:"source"`
	Tiles         []string           `yaml:"tiles"`
	Worth         *float64           `yaml:"worth"`
	End           *ReqYAML           `yaml:"end"`
	Hub           bool               `yaml:"hub"`
	Start         bool               `yaml:"start"`
	ExtraSpace    []RectYAML         `yaml:"extra_space"`
	Holes         []HoleYAML         `yaml:"holes"`
	Collectables  []CollectableYAML  `yaml:"collectables"`
	Flags         []FlagSetterYAML   `yaml:"flags"`
	Subrooms      []SubroomYAML      `yaml:"subrooms"`
	InternalEdges []InternalEdgeYAML `yaml:"internal_edges"`
	Warps         []WarpYAML         `yaml:"warps"`
}

// SubroomYAML declares a node other than main and the holes and
// collectables it owns
type SubroomYAML struct {
	Name         string            `yaml:"name"`
	Holes        []HoleYAML        `yaml:"holes"`
	Collectables []CollectableYAML `yaml:"collectables"`
	Flags        []FlagSetterYAML  `yaml:"flags"`
}

// HoleYAML classifies a detected hole, matched by side and ordinal index
// within that side. Bound fields edit the detected geometry.
type HoleYAML struct {
	Side      string   `yaml:"side"`
	Idx       int      `yaml:"idx"`
	Kind      string   `yaml:"kind"`
	Launch    *int     `yaml:"launch"`
	LowBound  *int     `yaml:"low_bound"`
	HighBound *int     `yaml:"high_bound"`
	HighOpen  *bool    `yaml:"high_open"`
	ReqIn     *ReqYAML `yaml:"req_in"`
	ReqOut    *ReqYAML `yaml:"req_out"`
}

// CollectableYAML is an item slot in room-local tile coordinates
type CollectableYAML struct {
	X       int  `yaml:"x"`
	Y       int  `yaml:"y"`
	MustFly bool `yaml:"must_fly"`
}

// InternalEdgeYAML is one of three directives: a plain link between From
// and To, a Split that carves node To out of From, or a Collectable split
// that moves one item slot into its own node To.
type InternalEdgeYAML struct {
	From        string   `yaml:"from"`
	To          string   `yaml:"to"`
	Split       string   `yaml:"split"`
	Collectable *int     `yaml:"collectable"`
	ReqIn       *ReqYAML `yaml:"req_in"`
	ReqOut      *ReqYAML `yaml:"req_out"`
}

// WarpYAML declares a custom warp leaving a node
type WarpYAML struct {
	Name   string   `yaml:"name"`
	Node   string   `yaml:"node"`
	ReqIn  *ReqYAML `yaml:"req_in"`
	ReqOut *ReqYAML `yaml:"req_out"`
}

// FlagSetterYAML records a flag changed by reaching a node
type FlagSetterYAML struct {
	Flag string `yaml:"flag"`
	Set  bool   `yaml:"set"`
}

// RectYAML is a room-local rectangle
type RectYAML struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// ReqYAML is an authored requirement. Every field that is set contributes
// a conjunct; And and Or nest further requirements.
type ReqYAML struct {
	And        []ReqYAML `yaml:"and"`
	Or         []ReqYAML `yaml:"or"`
	Dashes     string    `yaml:"dashes"`
	Difficulty string    `yaml:"difficulty"`
	Key        bool      `yaml:"key"`
	Keyhole    int       `yaml:"keyhole"`
	Flag       string    `yaml:"flag"`
	FlagSet    *bool     `yaml:"flag_set"`
	Impossible bool      `yaml:"impossible"`
}

// Build converts the authored requirement, using def when r is nil
func (r *ReqYAML) Build(def requirement.Requirement) (requirement.Requirement, error) {
	if r == nil {
		return def, nil
	}
	if r.Impossible {
		return requirement.Impossible{}, nil
	}

	var parts []requirement.Requirement

	if r.Dashes != "" {
		d, err := requirement.ParseDashes(r.Dashes)
		if err != nil {
			return nil, err
		}
		parts = append(parts, requirement.DashRequirement{Dashes: d})
	}
	if r.Difficulty != "" {
		d, err := requirement.ParseDifficulty(r.Difficulty)
		if err != nil {
			return nil, err
		}
		parts = append(parts, requirement.SkillRequirement{Difficulty: d})
	}
	if r.Key {
		parts = append(parts, requirement.KeyRequirement{KeyholeID: r.Keyhole})
	}
	if r.Flag != "" {
		set := true
		if r.FlagSet != nil {
			set = *r.FlagSet
		}
		parts = append(parts, requirement.FlagRequirement{Flag: r.Flag, Set: set})
	}

	if len(r.And) > 0 {
		sub, err := buildAll(r.And)
		if err != nil {
			return nil, err
		}
		parts = append(parts, requirement.And(sub...))
	}
	if len(r.Or) > 0 {
		sub, err := buildAll(r.Or)
		if err != nil {
			return nil, err
		}
		parts = append(parts, requirement.Or(sub...))
	}

	return requirement.And(parts...), nil
}

func buildAll(reqs []ReqYAML) ([]requirement.Requirement, error) {
	out := make([]requirement.Requirement, 0, len(reqs))
	for i := range reqs {
		r, err := reqs[i].Build(requirement.Possible{})
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}
