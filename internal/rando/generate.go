// Package rando builds level maps out of a room library. Each attempt runs
// a queue of resumable tasks that place rooms, join edges and assign items;
// a task that cannot continue makes the engine undo and retry the tasks
// before it. Attempts that exceed their backtrack ceiling are retried from
// scratch with a new seed derived from the settings seed.
package rando

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/lawnchairsociety/roomweaver/internal/config"
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/linked"
	"github.com/lawnchairsociety/roomweaver/internal/logger"
)

// DefaultMaxAttempts is the retry cap used when Options leaves it unset
const DefaultMaxAttempts = 10

// EventKind identifies a progress event
type EventKind int

const (
	EventAttemptStarted EventKind = iota
	EventRoomPlaced
	EventAttemptFailed
	EventGenerated
)

func (k EventKind) String() string {
	switch k {
	case EventAttemptStarted:
		return "attempt_started"
	case EventRoomPlaced:
		return "room_placed"
	case EventAttemptFailed:
		return "attempt_failed"
	case EventGenerated:
		return "generated"
	default:
		return "unknown"
	}
}

// Event reports generation progress to an Observer
type Event struct {
	Kind       EventKind
	Attempt    int
	Rooms      int
	Worth      float64
	Backtracks int
	// Room is the placed room for EventRoomPlaced
	Room string
	// Err is the failure for EventAttemptFailed
	Err error
}

// Options tunes a generation run
type Options struct {
	// MaxAttempts caps the number of attempts; zero uses DefaultMaxAttempts
	MaxAttempts int
	// Observer, when set, is called synchronously with progress events
	Observer func(Event)
	// Finished, when set, is called by GenerateContext once the run has
	// really returned, even if the caller stopped waiting for it
	Finished func()
}

// Result is a finished map
type Result struct {
	Map   *linked.Map
	Start *linked.Room
	// Attempt is the index of the attempt that succeeded
	Attempt    int
	Backtracks int
	Budget     Budget
}

// Bounds returns the bounding rectangle of the generated map
func (r *Result) Bounds() image.Rectangle {
	return r.Map.Bounds()
}

// Generate builds a map from lib with the given settings. Attempt failures
// are retried up to the attempt cap; the same seed and settings always
// produce the same map.
func Generate(lib *library.Library, settings *config.Settings, opts Options) (*Result, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	lib = lib.Filter(settings.Sources)
	if lib.Len() == 0 {
		return nil, ErrEmptyLibrary
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	budget := BudgetFor(settings)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		log := logger.With("seed", settings.Seed, "attempt", attempt, "algorithm", string(settings.Algorithm))
		log.Debug("attempt started", "rooms", lib.Len(), "max_worth", budget.MaxWorth)
		notify(opts.Observer, Event{Kind: EventAttemptStarted, Attempt: attempt})

		g := newGenerator(lib, settings, budget, attempt, log, opts.Observer)
		err := g.run()
		if err == nil {
			log.Info("map generated",
				"rooms", g.m.Count(),
				"worth", g.m.Worth(),
				"backtracks", g.engine.backtracks)
			notify(opts.Observer, Event{
				Kind:       EventGenerated,
				Attempt:    attempt,
				Rooms:      g.m.Count(),
				Worth:      g.m.Worth(),
				Backtracks: g.engine.backtracks,
			})
			return &Result{
				Map:        g.m,
				Start:      g.start,
				Attempt:    attempt,
				Backtracks: g.engine.backtracks,
				Budget:     budget,
			}, nil
		}

		var genErr *GenerationError
		if !errors.As(err, &genErr) {
			return nil, err
		}
		genErr.Attempt = attempt

		log.Warn("attempt failed", "reason", genErr.Reason, "backtracks", genErr.Backtracks)
		notify(opts.Observer, Event{Kind: EventAttemptFailed, Attempt: attempt, Backtracks: genErr.Backtracks, Err: genErr})
		lastErr = genErr
	}

	return nil, fmt.Errorf("%w: failed after %d attempts: %v", ErrCannotGenerate, maxAttempts, lastErr)
}

// GenerateContext runs Generate on its own goroutine and returns early with
// ctx's error when ctx ends first. The abandoned run finishes in the
// background and its result is discarded; opts.Finished reports when it
// is done.
func GenerateContext(ctx context.Context, lib *library.Library, settings *config.Settings, opts Options) (*Result, error) {
	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := Generate(lib, settings, opts)
		if opts.Finished != nil {
			opts.Finished()
		}
		done <- outcome{result, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.result, o.err
	}
}

func notify(observer func(Event), ev Event) {
	if observer != nil {
		observer(ev)
	}
}
