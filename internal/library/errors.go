package library

import (
	"errors"
	"fmt"
)

// ErrConfig is wrapped by every room authoring defect
var ErrConfig = errors.New("library: invalid room configuration")

// ConfigError identifies the room and field of an authoring defect
type ConfigError struct {
	Room  string
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("room %q: %s", e.Room, e.Msg)
	}
	return fmt.Sprintf("room %q: %s: %s", e.Room, e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}
