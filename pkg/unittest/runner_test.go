package unittest

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger keeps warnings in memory and drops debug output
type recordingLogger struct {
	log.Logger
	warnings []string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{Logger: log.NewLogger()}
}

func (l *recordingLogger) Warnf(format string, v ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, v...))
}

func (l *recordingLogger) Debugf(format string, v ...interface{}) {}

func counting(o Outcome, calls *int) Func {
	return func() Outcome {
		*calls++
		return o
	}
}

func newTestRunner(t *testing.T, opts ...Option) (*Runner, *bytes.Buffer, *recordingLogger) {
	t.Helper()
	var buf bytes.Buffer
	logger := newRecordingLogger()
	opts = append([]Option{WithOutput(&buf), WithLogger(logger), WithColor(false)}, opts...)
	r := NewRunner(opts...)
	t.Cleanup(r.Destroy)
	return r, &buf, logger
}

func TestRunner_MathExample(t *testing.T) {
	r, buf, _ := newTestRunner(t)

	math := NewSuite("Math")
	add := NewCase("add", func() Outcome { return Success })
	sub := NewCase("sub", nil)
	require.NoError(t, sub.AddResults(Success, BuildError))
	math.AddCase(add)
	math.AddCase(sub)
	r.AddSuite(math)

	r.Run()

	assert.Equal(t, []Outcome{Success}, add.Results())
	assert.Equal(t, []Outcome{Success, BuildError}, sub.Results())
	assert.Equal(t, Stats{Success: 2, BuildError: 1}, math.Stats())
	assert.Equal(t, Stats{Success: 2, BuildError: 1}, r.Stats())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Empty(t, lines[3])
	assert.Equal(t, "└─Math"+strings.Repeat(" ", 44)+"K:  2/0  B:  0/1  R:  0/0", lines[4])
	assert.Equal(t, "  ├─add: K ", lines[5])
	assert.Equal(t, "  └─sub: K B ", lines[6])
}

func TestRunner_ExecuteIsIdempotent(t *testing.T) {
	r, _, _ := newTestRunner(t)

	var calls int
	s := NewSuite("S")
	c := NewCase("c", counting(Success, &calls))
	s.AddCase(c)
	r.AddSuite(s)

	r.Execute()
	r.Execute()
	r.Run()

	assert.Equal(t, 1, calls)
	assert.Equal(t, []Outcome{Success}, c.Results())
}

func TestRunner_SkipsPopulatedCases(t *testing.T) {
	r, _, _ := newTestRunner(t)

	var calls int
	c := NewCase("c", counting(RuntimeError, &calls))
	require.NoError(t, c.AddResult(ExpectedBuildError))
	s := NewSuite("S")
	s.AddCase(c)
	r.AddSuite(s)

	r.Execute()
	assert.Zero(t, calls)
	assert.Equal(t, []Outcome{ExpectedBuildError}, c.Results())
}

func TestRunner_NestedExecution(t *testing.T) {
	build := func(r *Runner) (*int, *int) {
		var top, nested int
		s := NewSuite("top")
		s.AddCase(NewCase("t", counting(Success, &top)))
		child := NewSuite("child")
		grandchild := NewSuite("grandchild")
		grandchild.AddCase(NewCase("g", counting(Success, &nested)))
		child.AddChild(grandchild)
		s.AddChild(child)
		r.AddSuite(s)
		return &top, &nested
	}

	t.Run("default descends", func(t *testing.T) {
		r, _, _ := newTestRunner(t)
		top, nested := build(r)
		r.Execute()
		assert.Equal(t, 1, *top)
		assert.Equal(t, 1, *nested)
	})

	t.Run("top level only", func(t *testing.T) {
		r, _, _ := newTestRunner(t, WithNestedExecution(false))
		top, nested := build(r)
		r.Execute()
		assert.Equal(t, 1, *top)
		assert.Zero(t, *nested)
	})
}

func TestRunner_PanicBecomesRuntimeError(t *testing.T) {
	r, _, logger := newTestRunner(t)

	s := NewSuite("S")
	c := NewCase("boom", func() Outcome { panic("kaboom") })
	s.AddCase(c)
	r.AddSuite(s)

	r.Execute()

	assert.Equal(t, []Outcome{RuntimeError}, c.Results())
	require.Len(t, logger.warnings, 1)
	assert.Contains(t, logger.warnings[0], "boom")
	assert.Contains(t, logger.warnings[0], "kaboom")
}

func TestRunner_FailedAppendContinues(t *testing.T) {
	r, _, logger := newTestRunner(t)

	var calls int
	gone := NewCase("gone", counting(Success, &calls))
	ok := NewCase("ok", counting(Success, &calls))
	s := NewSuite("S")
	s.AddCase(gone)
	s.AddCase(ok)
	r.AddSuite(s)

	// released but still runnable, so its append fails
	gone.released = true

	r.Execute()

	assert.Equal(t, 2, calls)
	assert.Equal(t, []Outcome{Success}, ok.Results())
	require.Len(t, logger.warnings, 1)
	assert.Contains(t, logger.warnings[0], "Failed to add test result")
}

func TestRunner_GlobalStats(t *testing.T) {
	r, _, _ := newTestRunner(t)

	for _, o := range []Outcome{Success, BuildError, RuntimeError} {
		s := NewSuite(o.String())
		s.AddCase(NewCase("c", func() Outcome { return o }))
		r.AddSuite(s)
	}
	r.Execute()
	r.Aggregate()

	var sum Stats
	for _, s := range r.Suites() {
		sum.Add(s.Stats())
	}
	assert.Equal(t, sum, r.Stats())
	assert.Equal(t, 3, r.Stats().Total())
	assert.Equal(t, "3 results, 2 failing", r.String())
}

func TestRunner_PrintResultsEmpty(t *testing.T) {
	r, buf, _ := newTestRunner(t)
	r.PrintResults()
	assert.Empty(t, buf.String())

	var nilRunner *Runner
	nilRunner.Run()
	nilRunner.PrintResults()
	nilRunner.Destroy()
}

func TestRunner_PrintResultsDoesNotExecute(t *testing.T) {
	r, _, _ := newTestRunner(t)

	var calls int
	s := NewSuite("S")
	s.AddCase(NewCase("c", counting(Success, &calls)))
	r.AddSuite(s)

	r.PrintResults()
	assert.Zero(t, calls)
}

func TestRunner_AddSuiteOwnership(t *testing.T) {
	r, _, _ := newTestRunner(t)
	s := NewSuite("S")
	r.AddSuite(s)
	r.AddSuite(s)
	r.AddSuite(nil)

	parent := NewSuite("P")
	parent.AddChild(s)

	assert.Len(t, r.Suites(), 1)
	assert.Empty(t, parent.Children())
}

func TestRunner_Walk(t *testing.T) {
	r, _, _ := newTestRunner(t)

	a := NewSuite("a")
	b := NewSuite("b")
	c := NewSuite("c")
	d := NewSuite("d")
	a.AddChild(b)
	b.AddChild(c)
	r.AddSuite(a)
	r.AddSuite(d)

	var visited []string
	r.Walk(func(path []string, s *Suite) {
		assert.Equal(t, s.Name(), path[len(path)-1])
		visited = append(visited, strings.Join(path, "/"))
	})
	assert.Equal(t, []string{"a", "a/b", "a/b/c", "d"}, visited)
}

func TestRunner_WalkCases(t *testing.T) {
	build := func(r *Runner) {
		a := NewSuite("a")
		a.AddCase(NewCase("a1", nil))
		b := NewSuite("b")
		b.AddCase(NewCase("b1", nil))
		b.AddCase(NewCase("b2", nil))
		a.AddChild(b)
		d := NewSuite("d")
		d.AddCase(NewCase("d1", nil))
		r.AddSuite(a)
		r.AddSuite(d)
	}
	collect := func(r *Runner) []string {
		var names []string
		r.WalkCases(func(path []string, c *Case) {
			names = append(names, strings.Join(path, "/")+"/"+c.Name())
		})
		return names
	}

	t.Run("nested", func(t *testing.T) {
		r, _, _ := newTestRunner(t)
		build(r)
		assert.Equal(t, []string{"a/a1", "a/b/b1", "a/b/b2", "d/d1"}, collect(r))
	})

	t.Run("top level only", func(t *testing.T) {
		r, _, _ := newTestRunner(t, WithNestedExecution(false))
		build(r)
		assert.Equal(t, []string{"a/a1", "d/d1"}, collect(r))
	})
}

func TestRunner_Observer(t *testing.T) {
	type call struct {
		path    string
		name    string
		outcome Outcome
	}
	var calls []call

	r, _, _ := newTestRunner(t, WithObserver(func(path []string, c *Case, o Outcome, elapsed time.Duration) {
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		calls = append(calls, call{strings.Join(path, "/"), c.Name(), o})
	}))

	top := NewSuite("top")
	top.AddCase(NewCase("x", func() Outcome { return Success }))
	child := NewSuite("child")
	child.AddCase(NewCase("y", func() Outcome { return UnexpectedOutput }))
	top.AddChild(child)
	r.AddSuite(top)

	r.Execute()

	assert.Equal(t, []call{
		{"top", "x", Success},
		{"top/child", "y", UnexpectedOutput},
	}, calls)
}

func TestRunner_Destroy(t *testing.T) {
	r := NewRunner(WithOutput(&bytes.Buffer{}))
	s := NewSuite("S")
	c := NewCase("c", nil)
	s.AddCase(c)
	r.AddSuite(s)

	r.Destroy()
	assert.True(t, s.Released())
	assert.True(t, c.Released())
	assert.Empty(t, r.Suites())

	r.Destroy()
	r.AddSuite(NewSuite("late"))
	assert.Empty(t, r.Suites())
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(WithColumn(-3), WithOutput(nil), WithLogger(nil))
	opts := r.Options()
	assert.Equal(t, DefaultColumn, opts.Column)
	assert.True(t, opts.Color)
	assert.True(t, opts.NestedExecution)
	assert.NotNil(t, opts.Output)
	assert.NotNil(t, opts.Logger)
}
