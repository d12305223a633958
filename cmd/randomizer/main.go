// Command randomizer generates one map from a room library and settings
// file, writes the exported map and records the run.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/lawnchairsociety/roomweaver/internal/client"
	"github.com/lawnchairsociety/roomweaver/internal/config"
	"github.com/lawnchairsociety/roomweaver/internal/database"
	"github.com/lawnchairsociety/roomweaver/internal/library"
	"github.com/lawnchairsociety/roomweaver/internal/logger"
	"github.com/lawnchairsociety/roomweaver/internal/mapfile"
	"github.com/lawnchairsociety/roomweaver/internal/rando"
	"github.com/lawnchairsociety/roomweaver/internal/server"
)

var (
	colorOK    = color.Style{color.FgGreen, color.OpBold}
	colorFail  = color.Style{color.FgRed, color.OpBold}
	colorLabel = color.Style{color.FgCyan}
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns its exit code. Every deferred close
// runs before the process exits.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("randomizer", flag.ContinueOnError)
	flags.SetOutput(stderr)
	libraryDir := flags.String("library", "data/rooms", "Path to the room library directory")
	settingsFile := flags.String("settings", "data/settings.yaml", "Path to generation settings YAML file")
	seed := flags.String("seed", "", "Seed override (default: settings file seed)")
	algorithm := flags.String("algorithm", "", "Algorithm override: pathway, labyrinth or endless")
	length := flags.String("length", "", "Length override: short, medium, long or enormous")
	outputFile := flags.String("output", "map.yaml", "Path to write the exported map")
	maxAttempts := flags.Int("attempts", rando.DefaultMaxAttempts, "Maximum generation attempts")
	loggingConfig := flags.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	dbFile := flags.String("db", "data/runs.db", "Path to run history database (empty to skip recording)")
	history := flags.Int("history", 0, "Print the N most recent runs and exit")
	stats := flags.Bool("stats", false, "Print run statistics per algorithm and exit")
	serverURL := flags.String("server", "", "Generate on a running service instead, e.g. ws://localhost:8420/generate")
	timeout := flags.Duration("timeout", 2*time.Minute, "How long to wait for the service (with -server)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)

	var db *database.Database
	if *dbFile != "" {
		var err error
		db, err = database.Open(*dbFile)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open database: %v\n", err)
			return 1
		}
		defer db.Close()
	}

	if *history > 0 || *stats {
		if db == nil {
			fmt.Fprintln(stderr, "History needs a database (-db)")
			return 1
		}
		if *history > 0 {
			if err := printHistory(stdout, db, *history); err != nil {
				fmt.Fprintf(stderr, "Failed to read run history: %v\n", err)
				return 1
			}
		}
		if *stats {
			if err := printStats(stdout, db); err != nil {
				fmt.Fprintf(stderr, "Failed to read run stats: %v\n", err)
				return 1
			}
		}
		return 0
	}

	settings, err := config.LoadSettings(*settingsFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load settings: %v\n", err)
		return 1
	}
	if *seed != "" {
		settings.Seed = *seed
	}
	if *algorithm != "" {
		settings.Algorithm = config.Algorithm(*algorithm)
	}
	if *length != "" {
		settings.Length = config.Length(*length)
	}

	if *serverURL != "" {
		return generateRemote(stdout, stderr, *serverURL, settings, *maxAttempts, *timeout, *outputFile)
	}

	lib, err := library.LoadDir(*libraryDir)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load room library: %v\n", err)
		return 1
	}
	logger.Info("Room library loaded", "path", *libraryDir, "rooms", lib.Len(), "sources", lib.Sources())

	attempts := 0
	record := database.NewRun(settings)
	start := time.Now()
	result, genErr := rando.Generate(lib, settings, rando.Options{
		MaxAttempts: *maxAttempts,
		Observer: func(ev rando.Event) {
			if ev.Kind == rando.EventAttemptStarted {
				attempts++
			}
		},
	})
	record.Complete(result, genErr, attempts, time.Since(start))

	if db != nil {
		if err := db.RecordRun(record); err != nil {
			logger.Error("Failed to record run", "error", err)
		}
	}

	if genErr != nil {
		fmt.Fprintln(stdout, colorFail.Sprint("Generation failed: ")+genErr.Error())
		return 1
	}

	data := mapfile.Serialize(result.Map, settings)
	data.RunID = record.ID
	if err := mapfile.Save(data, *outputFile); err != nil {
		fmt.Fprintf(stderr, "Failed to save map: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, colorOK.Sprintf("Generated %s map %q", settings.Algorithm, settings.Seed))
	fmt.Fprintf(stdout, "%s %d (after %d attempts, %d backtracks)\n", colorLabel.Sprint("Rooms:"), record.Rooms, record.Attempts, record.Backtracks)
	fmt.Fprintf(stdout, "%s %.2f of %.0f-%.0f\n", colorLabel.Sprint("Worth:"), record.Worth, result.Budget.MinWorth, result.Budget.MaxWorth)
	b := result.Bounds()
	fmt.Fprintf(stdout, "%s %dx%d\n", colorLabel.Sprint("Bounds:"), b.Dx(), b.Dy())
	fmt.Fprintf(stdout, "%s %s\n", colorLabel.Sprint("Map:"), *outputFile)
	if record.ID != "" {
		fmt.Fprintf(stdout, "%s %s\n", colorLabel.Sprint("Run:"), record.ID)
	}
	return 0
}

func printHistory(w io.Writer, db *database.Database, n int) error {
	runs, err := db.RecentRuns(n)
	if err != nil {
		return err
	}
	for _, r := range runs {
		status := colorOK.Sprint("ok  ")
		if !r.Success {
			status = colorFail.Sprint("fail")
		}
		fmt.Fprintf(w, "%s %s %-9s %-8s %-20s rooms=%-3d attempts=%d %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"), status, r.Algorithm, r.Length, r.Seed, r.Rooms, r.Attempts, r.Duration)
	}
	return nil
}

func printStats(w io.Writer, db *database.Database) error {
	stats, err := db.Stats()
	if err != nil {
		return err
	}
	for _, s := range stats {
		fmt.Fprintf(w, "%s runs=%d ok=%d avg_backtracks=%.1f avg_ms=%.0f\n",
			colorLabel.Sprintf("%-9s", s.Algorithm), s.Runs, s.Successes, s.AvgBacktracks, s.AvgDurationMS)
	}
	return nil
}

// generateRemote submits the job to a generation service, which records
// the run itself. It returns the exit code.
func generateRemote(stdout, stderr io.Writer, url string, settings *config.Settings, maxAttempts int, timeout time.Duration, outputFile string) int {
	c, err := client.Dial(url)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to reach service: %v\n", err)
		return 1
	}
	defer c.Close()

	msg, err := c.Generate(settings.YAML(), maxAttempts, timeout, func(m server.Message) {
		switch {
		case m.Type == server.MessageAccepted:
			logger.Info("Job accepted", "job_id", m.JobID, "server", url)
		case m.Event == rando.EventAttemptFailed.String():
			logger.Debug("Attempt failed", "job_id", m.JobID, "attempt", m.Attempt, "error", m.Error)
		}
	})
	if err != nil {
		fmt.Fprintln(stdout, colorFail.Sprint("Generation failed: ")+err.Error())
		return 1
	}

	if err := os.WriteFile(outputFile, []byte(msg.Map), 0644); err != nil {
		fmt.Fprintf(stderr, "Failed to save map: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, colorOK.Sprintf("Generated %s map %q on %s", settings.Algorithm, settings.Seed, url))
	fmt.Fprintf(stdout, "%s %d (attempt %d, %d backtracks)\n", colorLabel.Sprint("Rooms:"), msg.Rooms, msg.Attempt, msg.Backtracks)
	fmt.Fprintf(stdout, "%s %.2f\n", colorLabel.Sprint("Worth:"), msg.Worth)
	fmt.Fprintf(stdout, "%s %s\n", colorLabel.Sprint("Map:"), outputFile)
	fmt.Fprintf(stdout, "%s %s\n", colorLabel.Sprint("Run:"), msg.JobID)
	return 0
}
