package unittest

import "time"

// InitialResultCapacity is the capacity a result log starts with on its first append.
// The capacity doubles every time the log fills up.
const InitialResultCapacity = 8

// Func is a runnable test body. It is invoked at most once per execution pass
// and reports a single Outcome.
type Func func() Outcome

// Case is a named leaf of the suite tree holding an optional runnable and
// the log of every result recorded for it
type Case struct {
	name     string
	fn       Func
	results  []Outcome
	limit    int           // 0 = unlimited
	elapsed  time.Duration // time spent in fn
	owned    bool
	released bool
}

// CaseOption configures a Case
type CaseOption func(*Case)

// WithResultLimit caps the number of results the case can hold.
// Zero or negative values mean no limit.
func WithResultLimit(n int) CaseOption {
	return func(c *Case) {
		if n > 0 {
			c.limit = n
		}
	}
}

// NewCase creates a test case. fn may be nil, in which case results can only
// be supplied with AddResult/AddResults.
func NewCase(name string, fn Func, opts ...CaseOption) *Case {
	c := &Case{
		name: name,
		fn:   fn,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the case name
func (c *Case) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Runnable reports whether the case has a test function
func (c *Case) Runnable() bool {
	return c != nil && c.fn != nil
}

// Len returns the number of results recorded so far
func (c *Case) Len() int {
	if c == nil {
		return 0
	}
	return len(c.results)
}

// Cap returns the current capacity of the result log
func (c *Case) Cap() int {
	if c == nil {
		return 0
	}
	return cap(c.results)
}

// Results returns a copy of the result log in append order
func (c *Case) Results() []Outcome {
	if c == nil || len(c.results) == 0 {
		return nil
	}
	out := make([]Outcome, len(c.results))
	copy(out, c.results)
	return out
}

// Elapsed returns the time spent running the case's test function
func (c *Case) Elapsed() time.Duration {
	if c == nil {
		return 0
	}
	return c.elapsed
}

// Released reports whether Destroy has been called on the case
func (c *Case) Released() bool {
	return c != nil && c.released
}

// AddResult appends one outcome to the result log.
// On failure the log is left unchanged.
func (c *Case) AddResult(o Outcome) error {
	if c == nil {
		return ErrNilCase
	}
	if c.released {
		return ErrReleased
	}
	if c.limit > 0 && len(c.results) >= c.limit {
		return ErrResultLimit
	}

	// grow by doubling
	if len(c.results) == cap(c.results) {
		newCap := InitialResultCapacity
		if cap(c.results) > 0 {
			newCap = cap(c.results) * 2
		}
		if c.limit > 0 && newCap > c.limit {
			newCap = c.limit
		}
		grown := make([]Outcome, len(c.results), newCap)
		copy(grown, c.results)
		c.results = grown
	}

	c.results = append(c.results, o)
	return nil
}

// AddResults appends each outcome in order. It stops at the first failing
// append, leaving exactly the outcomes appended so far in the log.
func (c *Case) AddResults(outcomes ...Outcome) error {
	if c == nil {
		return ErrNilCase
	}
	if len(outcomes) == 0 {
		return ErrNoResults
	}
	for _, o := range outcomes {
		if err := c.AddResult(o); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases the case's name and result log. Safe on nil and on an
// already destroyed case.
func (c *Case) Destroy() {
	if c == nil || c.released {
		return
	}
	c.name = ""
	c.fn = nil
	c.results = nil
	c.owned = false
	c.released = true
}

// DestroyCaseChain destroys every case in order
func DestroyCaseChain(cases ...*Case) {
	for i, c := range cases {
		cases[i] = nil
		c.Destroy()
	}
}
