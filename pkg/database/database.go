package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	q    querier
}

// querier is implemented by both *sql.DB and *sql.Tx
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Open opens or creates a SQLite database and initializes the schema
func Open(path string) (*DB, error) {
	// DSN parameters are applied to every pooled connection
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL allows readers (utree-query) while a run is being recorded
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// If database is locked, retry for up to 5 seconds before failing
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	db := &DB{conn: conn, q: conn}
	if err := db.runMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// InTx runs fn with a DB whose statements all belong to one transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
// Calling InTx on the DB handed to fn joins the running transaction.
func (db *DB) InTx(fn func(tx *DB) error) error {
	if _, nested := db.q.(*sql.Tx); nested {
		return fn(db)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&DB{conn: db.conn, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return multierror.Append(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateRun creates a new run record
func (db *DB) CreateRun(run *Run) error {
	result, err := db.q.Exec(`
		INSERT INTO runs (manifest, fingerprint, hostname, pid, started_at, status, total, failures, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Manifest, run.Fingerprint, run.Hostname, run.PID, run.StartedAt.Format(time.RFC3339),
		run.Status, run.Total, run.Failures, run.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateRun updates an existing run
func (db *DB) UpdateRun(run *Run) error {
	var completedAt *string
	if run.CompletedAt != nil {
		t := run.CompletedAt.Format(time.RFC3339)
		completedAt = &t
	}

	_, err := db.q.Exec(`
		UPDATE runs
		SET completed_at = ?, status = ?, total = ?, failures = ?, notes = ?
		WHERE id = ?`,
		completedAt, run.Status, run.Total, run.Failures, run.Notes, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return nil
}

const runColumns = `id, manifest, fingerprint, hostname, pid, started_at, completed_at, status, total, failures, notes`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var startedAt string
	var completedAt, notes *string

	err := row.Scan(
		&run.ID, &run.Manifest, &run.Fingerprint, &run.Hostname, &run.PID,
		&startedAt, &completedAt, &run.Status, &run.Total, &run.Failures, &notes,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if completedAt != nil {
		t, _ := time.Parse(time.RFC3339, *completedAt)
		run.CompletedAt = &t
	}
	if notes != nil {
		run.Notes = *notes
	}

	return &run, nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(id int64) (*Run, error) {
	run, err := scanRun(db.q.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs newest first, optionally filtered by status ("" = all)
func (db *DB) ListRuns(status string) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC, id DESC`

	rows, err := db.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
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

// CreateSuite creates a new suite record
func (db *DB) CreateSuite(s *Suite) error {
	result, err := db.q.Exec(`
		INSERT INTO suites (run_id, parent_id, position, name,
			success, unexpected_output, expected_build_error, build_error,
			expected_runtime_error, runtime_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.ParentID, s.Position, s.Name,
		s.Success, s.UnexpectedOutput, s.ExpectedBuildError, s.BuildError,
		s.ExpectedRuntimeError, s.RuntimeError,
	)
	if err != nil {
		return fmt.Errorf("failed to create suite: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	s.ID = id
	return nil
}

// ListSuites lists every suite of a run. Parents always come before their
// children, siblings in position order.
func (db *DB) ListSuites(runID int64) ([]*Suite, error) {
	rows, err := db.q.Query(`
		SELECT id, run_id, parent_id, position, name,
			success, unexpected_output, expected_build_error, build_error,
			expected_runtime_error, runtime_error
		FROM suites WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list suites: %w", err)
	}
	defer rows.Close()

	var suites []*Suite
	for rows.Next() {
		var s Suite
		err := rows.Scan(
			&s.ID, &s.RunID, &s.ParentID, &s.Position, &s.Name,
			&s.Success, &s.UnexpectedOutput, &s.ExpectedBuildError, &s.BuildError,
			&s.ExpectedRuntimeError, &s.RuntimeError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suite: %w", err)
		}
		suites = append(suites, &s)
	}

	return suites, rows.Err()
}

// CreateCase creates a new case record
func (db *DB) CreateCase(c *Case) error {
	result, err := db.q.Exec(`
		INSERT INTO cases (suite_id, position, name, results, duration_ms)
		VALUES (?, ?, ?, ?, ?)`,
		c.SuiteID, c.Position, c.Name, c.Results, c.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	c.ID = id
	return nil
}

// ListCases lists every case of a run ordered by suite and position
func (db *DB) ListCases(runID int64) ([]*Case, error) {
	rows, err := db.q.Query(`
		SELECT c.id, c.suite_id, c.position, c.name, c.results, c.duration_ms
		FROM cases c JOIN suites s ON s.id = c.suite_id
		WHERE s.run_id = ? ORDER BY c.suite_id, c.position`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []*Case
	for rows.Next() {
		var c Case
		if err := rows.Scan(&c.ID, &c.SuiteID, &c.Position, &c.Name, &c.Results, &c.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, &c)
	}

	return cases, rows.Err()
}

// Totals summarizes all recorded runs
type Totals struct {
	Runs     int
	Passed   int
	Failed   int
	Results  int
	Failures int
}

// GetTotals computes statistics over every run
func (db *DB) GetTotals() (*Totals, error) {
	var t Totals
	err := db.q.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(total), 0),
			COALESCE(SUM(failures), 0)
		FROM runs`, StatusPassed, StatusFailed,
	).Scan(&t.Runs, &t.Passed, &t.Failed, &t.Results, &t.Failures)
	if err != nil {
		return nil, fmt.Errorf("failed to compute totals: %w", err)
	}
	return &t, nil
}

// runMigrations applies database schema migrations for existing databases
func (db *DB) runMigrations() error {
	var durationExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('cases')
		WHERE name = 'duration_ms'
	`).Scan(&durationExists)
	if err != nil {
		return fmt.Errorf("failed to check for duration_ms column: %w", err)
	}

	if !durationExists {
		_, err := db.conn.Exec(`ALTER TABLE cases ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0`)
		if err != nil {
			return fmt.Errorf("failed to add duration_ms column: %w", err)
		}
	}

	return nil
}
