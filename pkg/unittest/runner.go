package unittest

import (
	"fmt"
	"strings"
	"time"

	"github.com/mslinn/unittree/pkg/timing"
)

// Runner is the root of a suite forest. It executes cases, aggregates
// statistics and prints the result tree.
type Runner struct {
	suites   []*Suite
	stats    Stats
	options  *Options
	released bool
}

// NewRunner creates an empty runner
func NewRunner(opts ...Option) *Runner {
	options := newDefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	applyDefaults(&options)

	return &Runner{
		options: &options,
	}
}

// AddSuite appends suite to the top-level suites. Nil suites and suites
// already attached elsewhere are ignored.
func (r *Runner) AddSuite(suite *Suite) {
	if r == nil || suite == nil || r.released {
		return
	}
	if suite.owned || suite.released {
		return
	}
	suite.owned = true
	r.suites = append(r.suites, suite)
}

// Suites returns the top-level suites in insertion order
func (r *Runner) Suites() []*Suite {
	if r == nil {
		return nil
	}
	return append([]*Suite(nil), r.suites...)
}

// Stats returns the sum of the top-level suite statistics as of the last
// aggregation
func (r *Runner) Stats() Stats {
	if r == nil {
		return Stats{}
	}
	return r.stats
}

// Options returns the runner configuration
func (r *Runner) Options() Options {
	if r == nil {
		return Options{}
	}
	return *r.options
}

// Run executes every pending case, then prints the result tree
func (r *Runner) Run() {
	if r == nil {
		return
	}
	r.Execute()
	r.PrintResults()
}

// Execute runs the test function of every case whose result log is empty and
// appends the returned outcome. Cases with results already recorded, or
// without a test function, are left untouched, so calling Execute twice
// invokes nothing the second time.
func (r *Runner) Execute() {
	if r == nil || r.released {
		return
	}
	for _, suite := range r.suites {
		r.executeSuite(suite, []string{suite.name})
	}
}

func (r *Runner) executeSuite(suite *Suite, path []string) {
	for _, c := range suite.cases {
		r.executeCase(c, path)
	}

	if !r.options.NestedExecution {
		return
	}

	for _, child := range suite.children {
		childPath := append(path[:len(path):len(path)], child.name)
		r.executeSuite(child, childPath)
	}
}

func (r *Runner) executeCase(c *Case, path []string) {
	if c.fn == nil || len(c.results) != 0 {
		return
	}

	var (
		result   Outcome
		panicked any
	)
	elapsed := timing.Measure(func() {
		result, panicked = invoke(c.fn)
	})
	c.elapsed += elapsed

	if panicked != nil {
		r.options.Logger.Warnf("Test %s panicked: %v", c.name, panicked)
	}

	if err := c.AddResult(result); err != nil {
		r.options.Logger.Warnf("Failed to add test result for %s: %s", c.name, err)
		return
	}

	r.options.Logger.Debugf("%s/%s: %s (%s)", strings.Join(path, "/"), c.name, result, elapsed.Round(time.Microsecond))

	if r.options.Observer != nil {
		r.options.Observer(path, c, result, elapsed)
	}
}

// invoke calls fn, turning a panic into a RuntimeError outcome
func invoke(fn Func) (result Outcome, panicked any) {
	defer func() {
		if p := recover(); p != nil {
			result = RuntimeError
			panicked = p
		}
	}()
	return fn(), nil
}

// Aggregate recomputes the statistics of every suite and the runner totals
func (r *Runner) Aggregate() {
	if r == nil {
		return
	}
	r.stats = Stats{}
	for _, suite := range r.suites {
		Aggregate(suite)
		r.stats.Add(suite.stats)
	}
}

// PrintResults aggregates and prints the legend and the result tree without
// executing anything. Does nothing when there are no suites.
func (r *Runner) PrintResults() {
	if r == nil || len(r.suites) == 0 {
		return
	}

	w := r.options.Output
	PrintLegend(w, r.options.Color)
	r.Aggregate()
	RenderTree(w, r.suites, TreeOptions{
		Column: r.options.Column,
		Color:  r.options.Color,
	})
}

// Walk visits every suite in the forest depth first, parents before
// children. path holds the suite's own name last.
func (r *Runner) Walk(fn func(path []string, suite *Suite)) {
	if r == nil || fn == nil {
		return
	}
	for _, suite := range r.suites {
		walkSuite(suite, []string{suite.name}, fn)
	}
}

func walkSuite(suite *Suite, path []string, fn func([]string, *Suite)) {
	fn(path, suite)
	for _, child := range suite.children {
		walkSuite(child, append(path[:len(path):len(path)], child.name), fn)
	}
}

// WalkCases visits the cases Execute considers, in execution order. Cases
// of nested suites are skipped when nested execution is off.
func (r *Runner) WalkCases(fn func(path []string, c *Case)) {
	if r == nil || fn == nil {
		return
	}
	r.Walk(func(path []string, suite *Suite) {
		if len(path) > 1 && !r.options.NestedExecution {
			return
		}
		for _, c := range suite.cases {
			fn(path, c)
		}
	})
}

// Destroy destroys the whole suite forest. Safe on nil.
func (r *Runner) Destroy() {
	if r == nil || r.released {
		return
	}
	DestroySuiteChain(r.suites...)
	r.suites = nil
	r.stats = Stats{}
	r.released = true
}

// String returns a one-line summary of the runner totals
func (r *Runner) String() string {
	s := r.Stats()
	return fmt.Sprintf("%d results, %d failing", s.Total(), s.Failures())
}
