package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/mslinn/unittree/pkg/config"
	"github.com/mslinn/unittree/pkg/database"
	"github.com/mslinn/unittree/pkg/history"
	"github.com/mslinn/unittree/pkg/unittest"
)

var version = "dev" // Set by -ldflags during build

func main() {
	var (
		showVersion bool
		showHelp    bool
		debug       bool
		dbPath      string
	)

	pflag.BoolVarP(&showVersion, "version", "V", false, "Show version and exit")
	pflag.BoolVarP(&showHelp, "help", "h", false, "Show this help message")
	pflag.BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	pflag.BoolVarP(&debug, "verbose", "v", false, "Enable verbose output (alias for --debug)")
	pflag.StringVar(&dbPath, "db", "", "Path to SQLite database (default from config)")

	// Stop parsing at first non-flag argument (the subcommand)
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if showVersion {
		fmt.Printf("utree-query version %s\n", version)
		os.Exit(0)
	}

	args := pflag.Args()
	if len(args) == 0 || showHelp {
		printHelp()
		os.Exit(0)
	}

	subcommand := args[0]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if dbPath == "" {
		dbPath = cfg.GetDatabasePath()
	}

	db, err := database.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch subcommand {
	case "list":
		handleList(db, args[1:], debug)
	case "show":
		handleShow(db, cfg, args[1:], debug)
	case "stats":
		handleStats(db, args[1:], debug)
	case "compare":
		handleCompare(db, args[1:], debug)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown subcommand '%s'\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func handleList(db *database.DB, args []string, debug bool) {
	fs := pflag.NewFlagSet("list", pflag.ExitOnError)
	status := fs.String("status", "", "Filter by status: running, passed, failed")
	limit := fs.Int("limit", 20, "Maximum number of runs to display")

	fs.Parse(args)

	runs, err := db.ListRuns(*status)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing runs: %v\n", err)
		os.Exit(1)
	}

	if len(runs) > *limit {
		runs = runs[:*limit]
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tStatus\tResults\tFailing\tStarted\tDuration\tManifest\tNotes")
	fmt.Fprintln(w, "--\t------\t-------\t-------\t-------\t--------\t--------\t-----")

	for _, run := range runs {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.Status,
			run.Total,
			run.Failures,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			duration(run),
			truncate(run.Manifest, 40),
			truncate(run.Notes, 30),
		)
	}
	w.Flush()

	if debug {
		fmt.Printf("\nTotal runs: %d\n", len(runs))
	}
}

func handleShow(db *database.DB, cfg *config.Config, args []string, debug bool) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Error: run ID required\n")
		fmt.Fprintf(os.Stderr, "Usage: utree-query show <RUN_ID> [--no-color] [--column N]\n")
		os.Exit(1)
	}

	fs := pflag.NewFlagSet("show", pflag.ExitOnError)
	noColor := fs.Bool("no-color", false, "Disable ANSI colors")
	column := fs.Int("column", cfg.Column, "Column the suite statistics are aligned to")
	fs.Parse(args[1:])

	var runID int64
	if _, err := fmt.Sscanf(args[0], "%d", &runID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid run ID '%s'\n", args[0])
		os.Exit(1)
	}

	runner, run, err := history.Rebuild(db, runID,
		unittest.WithColor(cfg.Color && !*noColor),
		unittest.WithColumn(*column),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: run %d not found: %v\n", runID, err)
		os.Exit(1)
	}
	defer runner.Destroy()

	fmt.Printf("Run %d:\n", run.ID)
	fmt.Printf("  Manifest:     %s\n", run.Manifest)
	if run.Fingerprint != "" {
		fmt.Printf("  Fingerprint:  %s\n", run.Fingerprint)
	}
	fmt.Printf("  Host:         %s (pid %d)\n", run.Hostname, run.PID)
	fmt.Printf("  Status:       %s\n", run.Status)
	fmt.Printf("  Started:      %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.CompletedAt != nil {
		fmt.Printf("  Completed:    %s\n", run.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("  Duration:     %s\n", duration(run))
	fmt.Printf("  Results:      %d (%d failing)\n", run.Total, run.Failures)
	if run.Notes != "" {
		fmt.Printf("  Notes:        %s\n", run.Notes)
	}
	fmt.Println()

	runner.PrintResults()

	if debug {
		cases, err := db.ListCases(runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing cases: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nCase timings:\n")
		for _, c := range cases {
			fmt.Printf("  %-30s %6d ms\n", c.Name, c.DurationMs)
		}
	}
}

func handleStats(db *database.DB, args []string, debug bool) {
	fs := pflag.NewFlagSet("stats", pflag.ExitOnError)
	runID := fs.Int64("run-id", 0, "Run ID (0 = all runs)")

	fs.Parse(args)

	if *runID > 0 {
		run, err := db.GetRun(*runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: run %d not found: %v\n", *runID, err)
			os.Exit(1)
		}

		suites, err := db.ListSuites(*runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing suites: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Run %d Statistics (%s):\n\n", run.ID, run.Status)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Suite\tSuccess\tUnexpected\tExp.Build\tBuild\tExp.Runtime\tRuntime")
		fmt.Fprintln(w, "-----\t-------\t----------\t---------\t-----\t-----------\t-------")
		for _, s := range suites {
			if s.ParentID != nil && !debug {
				continue
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
				s.Name,
				s.Success,
				s.UnexpectedOutput,
				s.ExpectedBuildError,
				s.BuildError,
				s.ExpectedRuntimeError,
				s.RuntimeError,
			)
		}
		w.Flush()

		fmt.Printf("\n  Results:  %d\n", run.Total)
		fmt.Printf("  Failing:  %d\n", run.Failures)
		return
	}

	totals, err := db.GetTotals()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("History Statistics:\n\n")
	fmt.Printf("  Runs:      %d (%d passed, %d failed)\n", totals.Runs, totals.Passed, totals.Failed)
	fmt.Printf("  Results:   %d\n", totals.Results)
	fmt.Printf("  Failing:   %d\n", totals.Failures)
	if totals.Results > 0 {
		fmt.Printf("  Pass rate: %.1f%%\n", 100*float64(totals.Results-totals.Failures)/float64(totals.Results))
	}
}

func handleCompare(db *database.DB, args []string, debug bool) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Error: two run IDs required\n")
		fmt.Fprintf(os.Stderr, "Usage: utree-query compare <OLD_RUN_ID> <NEW_RUN_ID>\n")
		os.Exit(1)
	}

	var oldID, newID int64
	if _, err := fmt.Sscanf(args[0], "%d", &oldID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid run ID '%s'\n", args[0])
		os.Exit(1)
	}
	if _, err := fmt.Sscanf(args[1], "%d", &newID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid run ID '%s'\n", args[1])
		os.Exit(1)
	}

	oldRun, err := db.GetRun(oldID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: run %d not found: %v\n", oldID, err)
		os.Exit(1)
	}
	newRun, err := db.GetRun(newID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: run %d not found: %v\n", newID, err)
		os.Exit(1)
	}

	if oldRun.Fingerprint != newRun.Fingerprint {
		fmt.Printf("Note: manifests changed between runs (%s -> %s)\n\n", oldRun.Fingerprint, newRun.Fingerprint)
	}

	diffs, err := history.Compare(db, oldID, newID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error comparing runs: %v\n", err)
		os.Exit(1)
	}

	if len(diffs) == 0 {
		fmt.Printf("No differences between run %d and run %d\n", oldID, newID)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Change\tCase\tRun "+args[0]+"\tRun "+args[1])
	fmt.Fprintln(w, "------\t----\t------\t------")
	for _, d := range diffs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ChangeType, d.Path, dash(d.OldResults), dash(d.NewResults))
	}
	w.Flush()

	if debug {
		fmt.Printf("\nTotal differences: %d\n", len(diffs))
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func duration(run *database.Run) string {
	if run.CompletedAt != nil {
		return fmt.Sprintf("%.1fs", run.CompletedAt.Sub(run.StartedAt).Seconds())
	}
	return fmt.Sprintf("%.1fs*", time.Since(run.StartedAt).Seconds())
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: utree-query [OPTIONS] COMMAND [ARGS...]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  list      List recorded runs\n")
	fmt.Fprintf(os.Stderr, "  show      Show a run and print its result tree\n")
	fmt.Fprintf(os.Stderr, "  stats     Show statistics for one run or for all runs\n")
	fmt.Fprintf(os.Stderr, "  compare   List cases whose results differ between two runs\n")
}

func printHelp() {
	fmt.Printf("utree-query - Query the run history\n\n")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Printf("DESCRIPTION:\n")
	fmt.Printf("  Reports on runs stored by utree-run. 'show' rebuilds the stored suite\n")
	fmt.Printf("  tree and prints it exactly as it was printed after the run.\n\n")

	fmt.Printf("USAGE:\n")
	fmt.Printf("  utree-query [OPTIONS] COMMAND [ARGS...]\n\n")

	fmt.Printf("COMMANDS:\n")
	fmt.Printf("  list      List recorded runs\n")
	fmt.Printf("  show      Show a run and print its result tree\n")
	fmt.Printf("  stats     Show statistics for one run or for all runs\n")
	fmt.Printf("  compare   List cases whose results differ between two runs\n\n")

	fmt.Printf("GLOBAL OPTIONS:\n")
	fmt.Printf("  -h, --help         Show this help message\n")
	fmt.Printf("  -V, --version      Show version\n")
	fmt.Printf("  -d, --debug        Enable debug output\n")
	fmt.Printf("  -v, --verbose      Enable verbose output (alias for --debug)\n")
	fmt.Printf("  --db PATH          Path to SQLite database\n\n")

	fmt.Printf("EXAMPLES:\n")
	fmt.Printf("  # List failed runs\n")
	fmt.Printf("  utree-query list --status failed\n\n")

	fmt.Printf("  # Print the tree of run 5 again\n")
	fmt.Printf("  utree-query show 5\n\n")

	fmt.Printf("  # Per-suite counters of run 5, nested suites included\n")
	fmt.Printf("  utree-query -d stats --run-id 5\n\n")

	fmt.Printf("  # What changed between runs 4 and 5\n")
	fmt.Printf("  utree-query compare 4 5\n\n")
}
