package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/spf13/pflag"

	"github.com/mslinn/unittree/pkg/checksum"
	"github.com/mslinn/unittree/pkg/config"
	"github.com/mslinn/unittree/pkg/database"
	"github.com/mslinn/unittree/pkg/history"
	"github.com/mslinn/unittree/pkg/manifest"
	"github.com/mslinn/unittree/pkg/unittest"
)

var version = "dev" // Set by -ldflags during build

func main() {
	var (
		showVersion  bool
		showHelp     bool
		debug        bool
		dbPath       string
		filters      []string
		noColor      bool
		noRecord     bool
		topLevelOnly bool
		listOnly     bool
		column       int
		timeout      time.Duration
		notes        string
	)

	pflag.BoolVarP(&showVersion, "version", "V", false, "Show version and exit")
	pflag.BoolVarP(&showHelp, "help", "h", false, "Show this help message")
	pflag.BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	pflag.BoolVarP(&debug, "verbose", "v", false, "Enable verbose output (alias for --debug)")
	pflag.StringVar(&dbPath, "db", "", "Path to SQLite database (default from config)")
	pflag.StringArrayVarP(&filters, "filter", "f", nil, "Only run cases whose Suite/case path matches this pattern (repeatable)")
	pflag.BoolVar(&noColor, "no-color", false, "Disable ANSI colors")
	pflag.BoolVar(&noRecord, "no-record", false, "Do not store the run in the history database")
	pflag.BoolVar(&topLevelOnly, "top-level-only", false, "Only execute the cases of top-level suites")
	pflag.BoolVar(&listOnly, "list", false, "List the selected cases without running them")
	pflag.IntVar(&column, "column", 0, "Column the suite statistics are aligned to (default from config)")
	pflag.DurationVar(&timeout, "timeout", 0, "Time limit for each build and run command (default from config)")
	pflag.StringVar(&notes, "notes", "", "Notes stored with the run")

	pflag.Parse()

	if showVersion {
		fmt.Printf("utree-run version %s\n", version)
		os.Exit(0)
	}

	if showHelp {
		printHelp()
		os.Exit(0)
	}

	paths := pflag.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one manifest required\n\n")
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the configuration
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if noColor {
		cfg.Color = false
	}
	if noRecord || listOnly {
		cfg.Record = false
	}
	if topLevelOnly {
		cfg.NestedExecution = false
	}
	if column > 0 {
		cfg.Column = column
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewLogger()
	logger.EnableDebugLog(debug)

	manifests, err := manifest.LoadAll(context.Background(), paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, m := range manifests {
		if err := m.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", m.Path, err)
			os.Exit(1)
		}
		if err := m.CheckVersion(version); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", m.Path, err)
			os.Exit(1)
		}
	}

	runner := unittest.NewRunner(append(cfg.RunnerOptions(), unittest.WithLogger(logger))...)
	defer runner.Destroy()

	for _, m := range manifests {
		suites, err := m.Build(manifest.BuildOptions{
			Filters: filters,
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", m.Path, err)
			os.Exit(1)
		}
		logger.Debugf("%s: %d top-level suites", m.Path, len(suites))
		for _, s := range suites {
			runner.AddSuite(s)
		}
	}

	if listOnly {
		listCases(runner)
		return
	}

	if len(runner.Suites()) == 0 {
		fmt.Println("No test cases selected")
		return
	}

	startedAt := time.Now()
	runner.Run()
	stats := runner.Stats()

	fmt.Println()
	if stats.Failures() == 0 {
		fmt.Printf("✓ %d results, no failures (%.2fs)\n", stats.Total(), time.Since(startedAt).Seconds())
	} else {
		fmt.Printf("✗ %d results, %d failing (%.2fs)\n", stats.Total(), stats.Failures(), time.Since(startedAt).Seconds())
	}

	if cfg.Record {
		recordRun(cfg, runner, paths, startedAt, notes, logger)
	}

	if stats.Failures() > 0 {
		os.Exit(1)
	}
}

// recordRun stores the run. A failure here is reported but does not change
// the exit status of the test run itself.
func recordRun(cfg *config.Config, runner *unittest.Runner, paths []string, startedAt time.Time, notes string, logger log.Logger) {
	db, err := database.Open(cfg.GetDatabasePath())
	if err != nil {
		logger.Warnf("Failed to open history database: %s", err)
		return
	}
	defer db.Close()

	checksums, err := checksum.ComputeFiles(paths)
	if err != nil {
		logger.Warnf("Failed to fingerprint manifests: %s", err)
	}
	for _, cs := range checksums {
		logger.Debugf("%s: %08x (%s)", cs.Path, cs.CRC32, checksum.FormatSize(cs.SizeBytes))
	}

	run, err := history.Record(db, runner, history.Meta{
		Manifests:   paths,
		Fingerprint: checksum.Fingerprint(checksums),
		StartedAt:   startedAt,
		Notes:       notes,
	})
	if err != nil {
		logger.Warnf("Failed to record run: %s", err)
		return
	}

	fmt.Printf("  Run ID: %d\n", run.ID)
	fmt.Printf("  View results: utree-query show %d\n", run.ID)
}

func listCases(runner *unittest.Runner) {
	count := 0
	runner.WalkCases(func(path []string, c *unittest.Case) {
		fmt.Printf("%s/%s\n", strings.Join(path, "/"), c.Name())
		count++
	})
	fmt.Printf("\n%d cases\n", count)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: utree-run [OPTIONS] MANIFEST...\n\n")
	fmt.Fprintf(os.Stderr, "Run the suites described by one or more manifests\n\n")
	pflag.PrintDefaults()
}

func printHelp() {
	fmt.Printf("utree-run - Execute test manifests and print the result tree\n\n")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Printf("DESCRIPTION:\n")
	fmt.Printf("  Loads every manifest, builds its suites and cases, runs each case that\n")
	fmt.Printf("  has no result yet and prints a legend followed by the suite tree with\n")
	fmt.Printf("  per-suite statistics. Each run is stored in the history database\n")
	fmt.Printf("  unless --no-record is given. The exit status is 1 when any failing\n")
	fmt.Printf("  outcome was recorded.\n\n")

	fmt.Printf("USAGE:\n")
	fmt.Printf("  utree-run [OPTIONS] MANIFEST...\n\n")

	fmt.Printf("OPTIONS:\n")
	pflag.PrintDefaults()

	fmt.Printf("\nEXAMPLES:\n")
	fmt.Printf("  # Run a manifest\n")
	fmt.Printf("  utree-run tests.yaml\n\n")

	fmt.Printf("  # Run the cases of the Math suite and its children only\n")
	fmt.Printf("  utree-run --filter 'Math/**' tests.yaml\n\n")

	fmt.Printf("  # List what would run\n")
	fmt.Printf("  utree-run --list tests/*.yaml\n\n")

	fmt.Printf("  # Run without touching the history database\n")
	fmt.Printf("  utree-run --no-record --no-color tests.yaml\n\n")
}
