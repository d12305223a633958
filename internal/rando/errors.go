package rando

import (
	"errors"
	"fmt"
)

var (
	// ErrGeneration marks an attempt-level failure. Generate retries these
	// with a new derived seed.
	ErrGeneration = errors.New("generation attempt failed")

	// ErrCannotGenerate is returned once every attempt has failed
	ErrCannotGenerate = errors.New("cannot generate a map with these settings")

	// ErrEmptyLibrary is returned when the enabled sources contain no rooms
	ErrEmptyLibrary = errors.New("room library is empty")

	// ErrNoStartRoom is returned when a strategy needs a start or hub room
	// and the library has none
	ErrNoStartRoom = errors.New("room library has no start or hub room")
)

// GenerationError describes why one attempt was abandoned
type GenerationError struct {
	Attempt    int
	Backtracks int
	Reason     string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("attempt %d failed after %d backtracks: %s", e.Attempt, e.Backtracks, e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return ErrGeneration
}
