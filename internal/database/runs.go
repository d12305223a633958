package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lawnchairsociety/roomweaver/internal/config"
	"github.com/lawnchairsociety/roomweaver/internal/rando"
)

// ErrDuplicateRun is returned when a run ID is recorded twice.
var ErrDuplicateRun = errors.New("run already recorded")

// Run is one Generate call as stored in generation_runs.
type Run struct {
	ID        string
	Seed      string
	Algorithm string
	Length    string
	// Settings is the YAML the run was started with
	Settings   string
	Success    bool
	Error      string
	Attempts   int
	Backtracks int
	Rooms      int
	Worth      float64
	Duration   time.Duration
	CreatedAt  time.Time
}

// NewRun starts a record for a Generate call with settings
func NewRun(settings *config.Settings) *Run {
	return &Run{
		Seed:      settings.Seed,
		Algorithm: string(settings.Algorithm),
		Length:    string(settings.Length),
		Settings:  settings.YAML(),
	}
}

// Complete fills in the outcome of the call. attempts is the number of
// attempts that were started.
func (r *Run) Complete(result *rando.Result, err error, attempts int, elapsed time.Duration) {
	r.Attempts = attempts
	r.Duration = elapsed
	if err != nil {
		r.Success = false
		r.Error = err.Error()
		return
	}
	r.Success = true
	r.Backtracks = result.Backtracks
	r.Rooms = result.Map.Count()
	r.Worth = result.Map.Worth()
}

// RunStats summarizes the stored runs for one algorithm.
type RunStats struct {
	Algorithm     string
	Runs          int
	Successes     int
	AvgBacktracks float64
	AvgDurationMS float64
}

const runColumns = `id, seed, algorithm, length, settings, success, error,
	attempts, backtracks, rooms, worth, duration_ms, created_at`

// RecordRun stores a run. An empty ID gets a new UUID and a zero CreatedAt
// is set to now; both are written back to run.
func (d *Database) RecordRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := d.db.Exec(d.qb.Build(`INSERT INTO generation_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.Seed, run.Algorithm, run.Length, run.Settings, run.Success, run.Error,
		run.Attempts, run.Backtracks, run.Rooms, run.Worth, run.Duration.Milliseconds(), run.CreatedAt.UTC())
	if err != nil {
		if d.dialect.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
		}
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// GetRun returns the run with the given ID, or nil if there is none.
func (d *Database) GetRun(id string) (*Run, error) {
	row := d.db.QueryRow(d.qb.Build(`SELECT `+runColumns+` FROM generation_runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (d *Database) RecentRuns(limit int) ([]*Run, error) {
	rows, err := d.db.Query(d.qb.Build(`SELECT `+runColumns+` FROM generation_runs
		ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return collectRuns(rows)
}

// RunsForSeed returns every run of seed, oldest first.
func (d *Database) RunsForSeed(seed string) ([]*Run, error) {
	rows, err := d.db.Query(d.qb.Build(`SELECT `+runColumns+` FROM generation_runs
		WHERE seed = ? ORDER BY created_at, id`), seed)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return collectRuns(rows)
}

// Stats returns per-algorithm totals ordered by algorithm name.
func (d *Database) Stats() ([]RunStats, error) {
	rows, err := d.db.Query(d.qb.Build(`SELECT algorithm, COUNT(*),
		SUM(CASE WHEN success THEN 1 ELSE 0 END),
		AVG(backtracks), AVG(duration_ms)
		FROM generation_runs GROUP BY algorithm ORDER BY algorithm`))
	if err != nil {
		return nil, fmt.Errorf("failed to query run stats: %w", err)
	}
	defer rows.Close()

	var stats []RunStats
	for rows.Next() {
		var s RunStats
		if err := rows.Scan(&s.Algorithm, &s.Runs, &s.Successes, &s.AvgBacktracks, &s.AvgDurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan run stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		durationMS int64
	)
	err := s.Scan(&run.ID, &run.Seed, &run.Algorithm, &run.Length, &run.Settings, &run.Success, &run.Error,
		&run.Attempts, &run.Backtracks, &run.Rooms, &run.Worth, &durationMS, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]*Run, error) {
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
