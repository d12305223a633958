package config

import (
	"fmt"
	"os"

	"github.com/lawnchairsociety/roomweaver/internal/requirement"
	"gopkg.in/yaml.v3"
)

// Algorithm selects the generation strategy
type Algorithm string

const (
	AlgorithmPathway   Algorithm = "pathway"
	AlgorithmLabyrinth Algorithm = "labyrinth"
	AlgorithmEndless   Algorithm = "endless"
)

// Length selects the size tier of the generated map
type Length string

const (
	LengthShort    Length = "short"
	LengthMedium   Length = "medium"
	LengthLong     Length = "long"
	LengthEnormous Length = "enormous"
)

// Strawberries selects how many optional items are placed
type Strawberries string

const (
	StrawberriesNone Strawberries = "none"
	StrawberriesFew  Strawberries = "few"
	StrawberriesMany Strawberries = "many"
)

// Settings holds the options for one generation request.
type Settings struct {
	Algorithm  Algorithm `yaml:"algorithm"`
	Length     Length    `yaml:"length"`
	Dashes     string    `yaml:"dashes"`
	Difficulty string    `yaml:"difficulty"`

	// RepeatRooms lets a room be placed more than once
	RepeatRooms bool `yaml:"repeat_rooms"`

	// EnterUnknown lets the generator use holes nobody classified
	EnterUnknown bool `yaml:"enter_unknown"`

	Strawberries Strawberries `yaml:"strawberries"`

	// Seed is hashed into the random source; the same seed and settings
	// always produce the same map.
	Seed string `yaml:"seed"`

	// Sources lists the enabled room source sets. Empty enables all.
	Sources []string `yaml:"sources"`

	// Budget overrides the size limits of the length tier
	Budget *Budget `yaml:"budget,omitempty"`
}

// Budget overrides individual limits of a length tier. Zero fields keep the
// tier default.
type Budget struct {
	MinWorth      float64 `yaml:"min_worth"`
	MaxWorth      float64 `yaml:"max_worth"`
	MaxRooms      int     `yaml:"max_rooms"`
	MaxBacktracks int     `yaml:"max_backtracks"`
}

// DefaultSettings returns settings for a short pathway with one dash.
func DefaultSettings() *Settings {
	return &Settings{
		Algorithm:    AlgorithmPathway,
		Length:       LengthShort,
		Dashes:       "one",
		Difficulty:   "normal",
		Strawberries: StrawberriesFew,
		Seed:         "roomweaver",
	}
}

// LoadSettings loads generation settings from a YAML file.
// If the file doesn't exist, returns default settings.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, err
	}

	return ParseSettings(data)
}

// ParseSettings reads settings YAML over the defaults and validates them.
func ParseSettings(data []byte) (*Settings, error) {
	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse settings YAML: %w", err)
	}

	return settings, settings.Validate()
}

// YAML returns the settings as a YAML document
func (s *Settings) YAML() string {
	out, err := yaml.Marshal(s)
	if err != nil {
		return ""
	}
	return string(out)
}

// Validate rejects unknown enum values and negative budget overrides
func (s *Settings) Validate() error {
	switch s.Algorithm {
	case AlgorithmPathway, AlgorithmLabyrinth, AlgorithmEndless:
	default:
		return fmt.Errorf("unknown algorithm %q", s.Algorithm)
	}
	switch s.Length {
	case LengthShort, LengthMedium, LengthLong, LengthEnormous:
	default:
		return fmt.Errorf("unknown length %q", s.Length)
	}
	switch s.Strawberries {
	case StrawberriesNone, StrawberriesFew, StrawberriesMany:
	default:
		return fmt.Errorf("unknown strawberry density %q", s.Strawberries)
	}
	if _, err := requirement.ParseDashes(s.Dashes); err != nil {
		return err
	}
	if _, err := requirement.ParseDifficulty(s.Difficulty); err != nil {
		return err
	}
	if b := s.Budget; b != nil {
		if b.MinWorth < 0 || b.MaxWorth < 0 || b.MaxRooms < 0 || b.MaxBacktracks < 0 {
			return fmt.Errorf("budget overrides must not be negative")
		}
		if b.MaxWorth > 0 && b.MinWorth > b.MaxWorth {
			return fmt.Errorf("budget min_worth %v exceeds max_worth %v", b.MinWorth, b.MaxWorth)
		}
	}
	return nil
}

// Capabilities returns the player abilities the settings describe.
// Invalid values fall back to one dash and normal difficulty.
func (s *Settings) Capabilities() requirement.Capabilities {
	dashes, err := requirement.ParseDashes(s.Dashes)
	if err != nil {
		dashes = requirement.DashesOne
	}
	skill, err := requirement.ParseDifficulty(s.Difficulty)
	if err != nil {
		skill = requirement.Normal
	}
	return requirement.Capabilities{Dashes: dashes, PlayerSkill: skill}
}

// StrawberryDensity returns the fraction of free slots that get a strawberry
func (s *Settings) StrawberryDensity() float64 {
	switch s.Strawberries {
	case StrawberriesFew:
		return 0.3
	case StrawberriesMany:
		return 0.7
	default:
		return 0
	}
}
