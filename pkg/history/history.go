// Package history stores finished runs in the database and rebuilds their
// suite trees so they can be printed again.
package history

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mslinn/unittree/pkg/database"
	"github.com/mslinn/unittree/pkg/unittest"
)

// Meta describes where a run came from
type Meta struct {
	Manifests   []string
	Fingerprint string
	StartedAt   time.Time
	Notes       string
}

// Record aggregates the runner and stores its whole suite forest as a new
// run. The run is written in a single transaction, so a failure leaves
// nothing behind.
func Record(db *database.DB, runner *unittest.Runner, meta Meta) (*database.Run, error) {
	runner.Aggregate()

	hostname, _ := os.Hostname()
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now()
	}

	run := &database.Run{
		Manifest:    strings.Join(meta.Manifests, ","),
		Fingerprint: meta.Fingerprint,
		Hostname:    hostname,
		PID:         os.Getpid(),
		StartedAt:   meta.StartedAt,
		Status:      database.StatusRunning,
		Notes:       meta.Notes,
	}

	err := db.InTx(func(tx *database.DB) error {
		if err := tx.CreateRun(run); err != nil {
			return err
		}

		for i, suite := range runner.Suites() {
			if err := recordSuite(tx, run.ID, nil, i, suite); err != nil {
				return fmt.Errorf("failed to record suite %s: %w", suite.Name(), err)
			}
		}

		stats := runner.Stats()
		now := time.Now()
		run.CompletedAt = &now
		run.Total = stats.Total()
		run.Failures = stats.Failures()
		run.Status = database.StatusPassed
		if run.Failures > 0 {
			run.Status = database.StatusFailed
		}

		return tx.UpdateRun(run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func recordSuite(db *database.DB, runID int64, parentID *int64, position int, suite *unittest.Suite) error {
	stats := suite.Stats()
	row := &database.Suite{
		RunID:                runID,
		ParentID:             parentID,
		Position:             position,
		Name:                 suite.Name(),
		Success:              stats.Success,
		UnexpectedOutput:     stats.UnexpectedOutput,
		ExpectedBuildError:   stats.ExpectedBuildError,
		BuildError:           stats.BuildError,
		ExpectedRuntimeError: stats.ExpectedRuntimeError,
		RuntimeError:         stats.RuntimeError,
	}
	if err := db.CreateSuite(row); err != nil {
		return err
	}

	for i, c := range suite.Cases() {
		err := db.CreateCase(&database.Case{
			SuiteID:    row.ID,
			Position:   i,
			Name:       c.Name(),
			Results:    FormatResults(c.Results()),
			DurationMs: c.Elapsed().Milliseconds(),
		})
		if err != nil {
			return err
		}
	}

	for i, child := range suite.Children() {
		if err := recordSuite(db, runID, &row.ID, i, child); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild loads a stored run and reconstructs its suite forest inside a new
// runner. The cases carry their stored results and no test functions, so
// the runner can print them but never executes anything.
func Rebuild(db *database.DB, runID int64, opts ...unittest.Option) (*unittest.Runner, *database.Run, error) {
	run, err := db.GetRun(runID)
	if err != nil {
		return nil, nil, err
	}

	suites, err := db.ListSuites(runID)
	if err != nil {
		return nil, nil, err
	}

	cases, err := db.ListCases(runID)
	if err != nil {
		return nil, nil, err
	}

	nodes := make(map[int64]*unittest.Suite, len(suites))
	for _, row := range suites {
		nodes[row.ID] = unittest.NewSuite(row.Name)
	}

	runner := unittest.NewRunner(opts...)
	fail := func(err error) (*unittest.Runner, *database.Run, error) {
		runner.Destroy()
		for _, s := range nodes {
			s.Destroy()
		}
		return nil, nil, err
	}

	for _, row := range cases {
		suite, ok := nodes[row.SuiteID]
		if !ok {
			return fail(fmt.Errorf("case %d references unknown suite %d", row.ID, row.SuiteID))
		}
		outcomes, err := ParseResults(row.Results)
		if err != nil {
			return fail(fmt.Errorf("case %d: %w", row.ID, err))
		}
		c := unittest.NewCase(row.Name, nil)
		if len(outcomes) > 0 {
			if err := c.AddResults(outcomes...); err != nil {
				return fail(fmt.Errorf("case %d: %w", row.ID, err))
			}
		}
		suite.AddCase(c)
	}

	// rows come parents first, siblings in position order
	for _, row := range suites {
		if row.ParentID == nil {
			runner.AddSuite(nodes[row.ID])
			continue
		}
		parent, ok := nodes[*row.ParentID]
		if !ok {
			return fail(fmt.Errorf("suite %d references unknown parent %d", row.ID, *row.ParentID))
		}
		parent.AddChild(nodes[row.ID])
	}

	return runner, run, nil
}

// FormatResults joins outcome names with commas
func FormatResults(outcomes []unittest.Outcome) string {
	names := make([]string, len(outcomes))
	for i, o := range outcomes {
		names[i] = o.String()
	}
	return strings.Join(names, ",")
}

// ParseResults is the inverse of FormatResults
func ParseResults(s string) ([]unittest.Outcome, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	outcomes := make([]unittest.Outcome, 0, len(parts))
	for _, part := range parts {
		o, err := unittest.ParseOutcome(part)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}
