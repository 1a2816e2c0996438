package manifest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/kballard/go-shellquote"

	"github.com/mslinn/unittree/pkg/timing"
	"github.com/mslinn/unittree/pkg/unittest"
)

// BuildOptions configures Build
type BuildOptions struct {
	// Filters are doublestar patterns matched against "Suite/Child/case"
	// paths. When set, only matching cases are built and suites left
	// without cases are dropped.
	Filters []string

	// Timeout limits each build and run command. Zero means no limit.
	Timeout time.Duration

	// Logger receives the output of failing commands.
	// Default: log.NewLogger().
	Logger log.Logger
}

// Build converts the manifest into unittest suites ready to be added to a runner
func (m *Manifest) Build(opts BuildOptions) ([]*unittest.Suite, error) {
	for _, pattern := range opts.Filters {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid filter pattern %q", pattern)
		}
	}

	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}

	b := &builder{
		dir:  m.workDir(),
		opts: opts,
	}

	var suites []*unittest.Suite
	for i := range m.Suites {
		s, err := b.suite(&m.Suites[i], nil)
		if err != nil {
			unittest.DestroySuiteChain(suites...)
			return nil, err
		}
		if s != nil {
			suites = append(suites, s)
		}
	}
	return suites, nil
}

// workDir resolves the directory commands run in
func (m *Manifest) workDir() string {
	base := ""
	if m.Path != "" {
		base = filepath.Dir(m.Path)
	}
	if m.Dir == "" {
		return base
	}
	if filepath.IsAbs(m.Dir) {
		return m.Dir
	}
	return filepath.Join(base, m.Dir)
}

type builder struct {
	dir  string
	opts BuildOptions
}

// suite builds s and its subtree. It returns nil when filtering left the
// subtree empty.
func (b *builder) suite(s *Suite, parents []string) (*unittest.Suite, error) {
	path := append(parents[:len(parents):len(parents)], s.Name)
	out := unittest.NewSuite(s.Name)
	kept := 0

	for i := range s.Cases {
		c := &s.Cases[i]
		casePath := strings.Join(append(path[:len(path):len(path)], c.Name), "/")
		if !b.selected(casePath) {
			continue
		}
		tc, err := b.testCase(c, casePath)
		if err != nil {
			out.Destroy()
			return nil, fmt.Errorf("%s: %w", casePath, err)
		}
		out.AddCase(tc)
		kept++
	}

	for i := range s.Suites {
		child, err := b.suite(&s.Suites[i], path)
		if err != nil {
			out.Destroy()
			return nil, err
		}
		if child != nil {
			out.AddChild(child)
			kept++
		}
	}

	if kept == 0 && len(b.opts.Filters) > 0 {
		out.Destroy()
		return nil, nil
	}
	return out, nil
}

func (b *builder) selected(casePath string) bool {
	if len(b.opts.Filters) == 0 {
		return true
	}
	for _, pattern := range b.opts.Filters {
		if ok, _ := doublestar.Match(pattern, casePath); ok {
			return true
		}
	}
	return false
}

func (b *builder) testCase(c *Case, casePath string) (*unittest.Case, error) {
	var fn unittest.Func
	if c.Build != "" || c.Run != "" {
		cmd, err := b.command(c, casePath)
		if err != nil {
			return nil, err
		}
		fn = cmd.execute
	}

	tc := unittest.NewCase(c.Name, fn)
	if len(c.Results) > 0 {
		if err := tc.AddResults(c.Results...); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

func (b *builder) command(c *Case, casePath string) (*command, error) {
	cmd := &command{
		path:   casePath,
		expect: c.Expect,
		stdout: c.Stdout,
		logger: b.opts.Logger,
		opts: timing.Options{
			Dir:     b.dir,
			Timeout: b.opts.Timeout,
			Stdin:   c.Stdin,
			Env:     environ(c.Env),
		},
	}

	var err error
	if c.Build != "" {
		if cmd.build, err = splitCommand(c.Build); err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
	}
	if c.Run != "" {
		if cmd.run, err = splitCommand(c.Run); err != nil {
			return nil, fmt.Errorf("run: %w", err)
		}
	}
	return cmd, nil
}

func splitCommand(line string) ([]string, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q: %w", line, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command %q", line)
	}
	return words, nil
}

// environ turns an env map into sorted KEY=VALUE pairs
func environ(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}

// command is a case backed by an optional build step and an optional run step
type command struct {
	path   string
	build  []string
	run    []string
	expect Expectation
	stdout *string
	logger log.Logger
	opts   timing.Options
}

func (c *command) execute() unittest.Outcome {
	var build, run *timing.Result

	if len(c.build) > 0 {
		build = timing.Run(c.build[0], c.build[1:], &timing.Options{
			Dir:     c.opts.Dir,
			Timeout: c.opts.Timeout,
			Env:     c.opts.Env,
		})
		if !build.Success() {
			return c.report(Classify(c.expect, build, nil, c.stdout), build)
		}
	}

	if len(c.run) > 0 {
		opts := c.opts
		run = timing.Run(c.run[0], c.run[1:], &opts)
	}

	last := run
	if last == nil {
		last = build
	}
	return c.report(Classify(c.expect, build, run, c.stdout), last)
}

// report logs the step that decided the outcome, with its full output when
// the outcome is failing
func (c *command) report(o unittest.Outcome, res *timing.Result) unittest.Outcome {
	if res == nil {
		return o
	}
	if !o.Failing() {
		c.logger.Debugf("%s: %s", c.path, res)
		return o
	}

	msg := fmt.Sprintf("%s: %s\n%s", c.path, o, res.DebugString())
	if o == unittest.UnexpectedOutput && c.stdout != nil {
		msg += fmt.Sprintf("EXPECTED STDOUT:\n%s\n", *c.stdout)
	}
	c.logger.Warnf("%s", msg)
	return o
}

// Classify maps the results of a case's build and run commands to an outcome.
// build and run may be nil when the step was not declared; wantStdout is
// compared only when set.
func Classify(expect Expectation, build, run *timing.Result, wantStdout *string) unittest.Outcome {
	if build != nil && !build.Success() {
		if expect == ExpectBuildError {
			return unittest.ExpectedBuildError
		}
		return unittest.BuildError
	}

	if run == nil {
		if expect == ExpectBuildError {
			return unittest.UnexpectedOutput
		}
		return unittest.Success
	}

	if !run.Success() {
		if expect == ExpectRuntimeError {
			return unittest.ExpectedRuntimeError
		}
		return unittest.RuntimeError
	}

	if expect == ExpectBuildError || expect == ExpectRuntimeError {
		return unittest.UnexpectedOutput
	}
	if wantStdout != nil && run.Stdout != *wantStdout {
		return unittest.UnexpectedOutput
	}
	return unittest.Success
}
