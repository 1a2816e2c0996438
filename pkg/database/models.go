package database

import "time"

// Run represents one execution of the harness
type Run struct {
	ID          int64
	Manifest    string // manifest paths, comma separated
	Fingerprint string // CRC32 over the manifest files, see checksum.Fingerprint
	Hostname    string
	PID         int
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string // 'running', 'passed', 'failed'
	Total       int    // number of results recorded
	Failures    int    // number of failing results
	Notes       string
}

// Run statuses
const (
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
)

// Suite is a stored suite node with its aggregated counters
type Suite struct {
	ID                   int64
	RunID                int64
	ParentID             *int64 // nil for top-level suites
	Position             int
	Name                 string
	Success              int
	UnexpectedOutput     int
	ExpectedBuildError   int
	BuildError           int
	ExpectedRuntimeError int
	RuntimeError         int
}

// Case is a stored test case and its result log
type Case struct {
	ID         int64
	SuiteID    int64
	Position   int
	Name       string
	Results    string // outcome names, comma separated, in append order
	DurationMs int64  // time spent in the test function
}
