package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mslinn/unittree/pkg/timing"
	"github.com/mslinn/unittree/pkg/unittest"
)

const mathManifest = `
requires: ">= 0.1.0"
suites:
  - name: Math
    cases:
      - name: add
        run: "sh -c 'echo 3'"
        stdout: "3\n"
      - name: sub
        results: [success, build_error]
    suites:
      - name: Nested
        cases:
          - name: mul
            run: "true"
  - name: Strings
    cases:
      - name: concat
        results: [unexpected_output]
`

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func suiteNames(suites []*unittest.Suite) []string {
	var names []string
	for _, s := range suites {
		names = append(names, s.Name())
	}
	return names
}

func caseNames(s *unittest.Suite) []string {
	var names []string
	for _, c := range s.Cases() {
		names = append(names, c.Name())
	}
	return names
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte(mathManifest))
	require.NoError(t, err)

	assert.Equal(t, ">= 0.1.0", m.Requires)
	require.Len(t, m.Suites, 2)

	math := m.Suites[0]
	assert.Equal(t, "Math", math.Name)
	require.Len(t, math.Cases, 2)
	require.NotNil(t, math.Cases[0].Stdout)
	assert.Equal(t, "3\n", *math.Cases[0].Stdout)
	assert.Equal(t, []unittest.Outcome{unittest.Success, unittest.BuildError}, math.Cases[1].Results)
	require.Len(t, math.Suites, 1)
	assert.Equal(t, "mul", math.Suites[0].Cases[0].Name)
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte(`
suites:
  - name: Math
    cases:
      - name: add
        run: "true"
        exepct: build_error
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exepct")
}

func TestParse_Empty(t *testing.T) {
	m, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, m.Suites)
}

func TestParse_UnknownOutcome(t *testing.T) {
	_, err := Parse([]byte("suites:\n  - name: S\n    cases:\n      - name: c\n        results: [passed]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown outcome")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		manifest   Manifest
		wantErrors int
	}{
		{
			name: "should accept a valid manifest",
			manifest: Manifest{Suites: []Suite{{
				Name:  "S",
				Cases: []Case{{Name: "c", Run: "true"}, {Name: "d", Results: []unittest.Outcome{unittest.Success}}},
			}}},
			wantErrors: 0,
		},
		{
			name:       "should reject a manifest without suites",
			manifest:   Manifest{},
			wantErrors: 1,
		},
		{
			name: "should collect every problem",
			manifest: Manifest{
				Requires: "not a constraint",
				Suites: []Suite{{
					Name: "",
					Cases: []Case{
						{Name: "", Run: "true"},
						{Name: "bad-expect", Run: "true", Expect: "crash"},
						{Name: "empty"},
					},
					Suites: []Suite{{Name: "child", Cases: []Case{{Name: "x"}}}},
				}},
			},
			wantErrors: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// When
			err := tt.manifest.Validate()

			// Then
			if tt.wantErrors == 0 {
				assert.NoError(t, err)
				return
			}
			var merr *multierror.Error
			require.True(t, errors.As(err, &merr), "want a multierror, got %v", err)
			assert.Len(t, merr.Errors, tt.wantErrors)
		})
	}
}

func TestCheckVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		requires string
		version  string
		wantErr  error
		wantAny  bool
	}{
		{name: "no constraint", requires: "", version: "0.0.1"},
		{name: "dev build", requires: ">= 9.0", version: "dev"},
		{name: "satisfied", requires: ">= 0.1.0, < 1.0", version: "0.4.2"},
		{name: "too old", requires: ">= 1.2", version: "1.1.9", wantErr: ErrVersion},
		{name: "bad constraint", requires: "~>", version: "1.0.0", wantAny: true},
		{name: "bad version", requires: ">= 1.0", version: "banana", wantAny: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := &Manifest{Requires: tt.requires}
			err := m.CheckVersion(tt.version)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAny:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadAll_PreservesOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"c.yaml", "a.yaml", "b.yaml"} {
		paths = append(paths, writeManifest(t, dir, name, "suites:\n  - name: "+name+"\n"))
	}

	manifests, err := LoadAll(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, manifests, 3)

	for i, m := range manifests {
		assert.Equal(t, paths[i], m.Path)
		assert.Equal(t, filepath.Base(paths[i]), m.Suites[0].Name)
	}
}

func TestLoadAll_MissingFile(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeManifest(t, dir, "ok.yaml", "suites:\n  - name: ok\n"),
		filepath.Join(dir, "missing.yaml"),
	}

	_, err := LoadAll(context.Background(), paths)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")
}

func TestBuild_Tree(t *testing.T) {
	m, err := Parse([]byte(mathManifest))
	require.NoError(t, err)

	suites, err := m.Build(BuildOptions{})
	require.NoError(t, err)
	defer unittest.DestroySuiteChain(suites...)

	assert.Equal(t, []string{"Math", "Strings"}, suiteNames(suites))
	assert.Equal(t, []string{"add", "sub"}, caseNames(suites[0]))
	assert.Equal(t, []string{"Nested"}, suiteNames(suites[0].Children()))

	add, sub := suites[0].Cases()[0], suites[0].Cases()[1]
	assert.True(t, add.Runnable())
	assert.Equal(t, 0, add.Len())
	assert.False(t, sub.Runnable())
	assert.Equal(t, []unittest.Outcome{unittest.Success, unittest.BuildError}, sub.Results())
}

func TestBuild_Filters(t *testing.T) {
	m, err := Parse([]byte(mathManifest))
	require.NoError(t, err)

	tests := []struct {
		name       string
		filters    []string
		wantSuites []string
		wantCases  []string
	}{
		{
			name:       "single case",
			filters:    []string{"Math/add"},
			wantSuites: []string{"Math"},
			wantCases:  []string{"add"},
		},
		{
			name:       "whole suite",
			filters:    []string{"Strings/*"},
			wantSuites: []string{"Strings"},
			wantCases:  []string{"concat"},
		},
		{
			name:       "nested only prunes the parent's cases",
			filters:    []string{"**/mul"},
			wantSuites: []string{"Math"},
			wantCases:  nil,
		},
		{
			name:       "no match",
			filters:    []string{"Nope/**"},
			wantSuites: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suites, err := m.Build(BuildOptions{Filters: tt.filters})
			require.NoError(t, err)
			defer unittest.DestroySuiteChain(suites...)

			if diff := cmp.Diff(tt.wantSuites, suiteNames(suites)); diff != "" {
				t.Errorf("suites mismatch (-want +got):\n%s", diff)
			}
			if len(suites) > 0 {
				if diff := cmp.Diff(tt.wantCases, caseNames(suites[0])); diff != "" {
					t.Errorf("cases mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestBuild_InvalidFilter(t *testing.T) {
	m := &Manifest{Suites: []Suite{{Name: "S"}}}
	_, err := m.Build(BuildOptions{Filters: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestBuild_UnbalancedQuotes(t *testing.T) {
	m := &Manifest{Suites: []Suite{{Name: "S", Cases: []Case{{Name: "c", Run: "echo 'oops"}}}}}
	_, err := m.Build(BuildOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S/c")
}

func TestWorkDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    Manifest
		want string
	}{
		{name: "no path", m: Manifest{}, want: ""},
		{name: "file dir", m: Manifest{Path: "/suites/math.yaml"}, want: "/suites"},
		{name: "relative dir", m: Manifest{Path: "/suites/math.yaml", Dir: "bin"}, want: "/suites/bin"},
		{name: "absolute dir", m: Manifest{Path: "/suites/math.yaml", Dir: "/opt/t"}, want: "/opt/t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.m.workDir())
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	ok := &timing.Result{}
	failed := &timing.Result{ExitCode: 1}
	out := func(s string) *timing.Result { return &timing.Result{Stdout: s} }
	want := func(s string) *string { return &s }

	tests := []struct {
		name   string
		expect Expectation
		build  *timing.Result
		run    *timing.Result
		stdout *string
		want   unittest.Outcome
	}{
		{name: "build fails", build: failed, want: unittest.BuildError},
		{name: "build fails as expected", expect: ExpectBuildError, build: failed, want: unittest.ExpectedBuildError},
		{name: "build only succeeds", build: ok, want: unittest.Success},
		{name: "build succeeds but should fail", expect: ExpectBuildError, build: ok, want: unittest.UnexpectedOutput},
		{name: "run fails", build: ok, run: failed, want: unittest.RuntimeError},
		{name: "run fails as expected", expect: ExpectRuntimeError, run: failed, want: unittest.ExpectedRuntimeError},
		{name: "run succeeds but should fail", expect: ExpectRuntimeError, run: ok, want: unittest.UnexpectedOutput},
		{name: "output matches", run: out("3\n"), stdout: want("3\n"), want: unittest.Success},
		{name: "output differs", run: out("4\n"), stdout: want("3\n"), want: unittest.UnexpectedOutput},
		{name: "output not checked", run: out("anything"), want: unittest.Success},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.expect, tt.build, tt.run, tt.stdout))
		})
	}
}

func TestBuild_ExecutesCommands(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "cmds.yaml", `
suites:
  - name: Commands
    cases:
      - name: echo
        run: "sh -c 'echo 3'"
        stdout: "3\n"
      - name: wrong-output
        run: "echo 4"
        stdout: "3\n"
      - name: build-fails
        build: "false"
        run: "true"
      - name: expected-crash
        run: "sh -c 'exit 3'"
        expect: runtime_error
      - name: stdin
        run: "cat"
        stdin: "hello"
        stdout: "hello"
      - name: workdir
        run: "ls"
        stdout: "cmds.yaml\n"
      - name: env
        build: "sh -c 'test \"$GREETING\" = hi'"
        run: "sh -c 'echo $GREETING'"
        env:
          GREETING: hi
        stdout: "hi\n"
`)

	m, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	suites, err := m.Build(BuildOptions{Timeout: 10 * time.Second, Logger: &captureLogger{Logger: log.NewLogger()}})
	require.NoError(t, err)

	runner := unittest.NewRunner(unittest.WithOutput(io.Discard))
	defer runner.Destroy()
	for _, s := range suites {
		runner.AddSuite(s)
	}
	runner.Execute()

	got := map[string][]unittest.Outcome{}
	for _, c := range suites[0].Cases() {
		got[c.Name()] = c.Results()
	}

	want := map[string][]unittest.Outcome{
		"echo":           {unittest.Success},
		"wrong-output":   {unittest.UnexpectedOutput},
		"build-fails":    {unittest.BuildError},
		"expected-crash": {unittest.ExpectedRuntimeError},
		"stdin":          {unittest.Success},
		"workdir":        {unittest.Success},
		"env":            {unittest.Success},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

// captureLogger keeps warnings and debug lines in memory
type captureLogger struct {
	log.Logger
	warnings []string
	debugs   []string
}

func (l *captureLogger) Warnf(format string, v ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, v...))
}

func (l *captureLogger) Debugf(format string, v ...interface{}) {
	l.debugs = append(l.debugs, fmt.Sprintf(format, v...))
}

func TestBuild_LogsFailingOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "noisy.yaml", `
suites:
  - name: Noisy
    cases:
      - name: broken-build
        build: "sh -c 'echo cannot find header >&2; exit 1'"
        run: "true"
      - name: crash
        run: "sh -c 'echo partial; echo segfault >&2; exit 139'"
      - name: mismatch
        run: "echo 4"
        stdout: "3\n"
      - name: quiet
        run: "true"
`)

	m, err := Load(path)
	require.NoError(t, err)

	logger := &captureLogger{Logger: log.NewLogger()}
	suites, err := m.Build(BuildOptions{Timeout: 10 * time.Second, Logger: logger})
	require.NoError(t, err)

	runner := unittest.NewRunner(unittest.WithOutput(io.Discard))
	defer runner.Destroy()
	for _, s := range suites {
		runner.AddSuite(s)
	}
	runner.Execute()

	require.Len(t, logger.warnings, 3)

	build := logger.warnings[0]
	assert.True(t, strings.HasPrefix(build, "Noisy/broken-build: build_error"), build)
	assert.Contains(t, build, "STDERR:\ncannot find header")

	crash := logger.warnings[1]
	assert.True(t, strings.HasPrefix(crash, "Noisy/crash: runtime_error"), crash)
	assert.Contains(t, crash, "STDOUT:\npartial")
	assert.Contains(t, crash, "STDERR:\nsegfault")

	mismatch := logger.warnings[2]
	assert.Contains(t, mismatch, "STDOUT:\n4")
	assert.Contains(t, mismatch, "EXPECTED STDOUT:\n3")

	require.Len(t, logger.debugs, 1)
	assert.True(t, strings.HasPrefix(logger.debugs[0], "Noisy/quiet: "), logger.debugs[0])
}

func TestEnviron(t *testing.T) {
	assert.Nil(t, environ(nil))
	assert.Equal(t, []string{"A=1", "B=two"}, environ(map[string]string{"B": "two", "A": "1"}))
}
