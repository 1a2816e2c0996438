// Package manifest loads suite trees declared in YAML files and turns them
// into unittest suites whose cases build and run external commands.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-version"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/mslinn/unittree/pkg/unittest"
)

// Expectation names what a command case is supposed to end with
type Expectation string

const (
	ExpectOutput       Expectation = "output"
	ExpectBuildError   Expectation = "build_error"
	ExpectRuntimeError Expectation = "runtime_error"
)

var (
	// ErrVersion is returned when a manifest requires a newer harness.
	ErrVersion = errors.New("manifest: harness version does not satisfy requirement")
)

// Manifest is the root of a manifest file
type Manifest struct {
	Path     string  `yaml:"-"`
	Requires string  `yaml:"requires,omitempty"`
	Dir      string  `yaml:"dir,omitempty"` // working directory for commands, relative to the file
	Suites   []Suite `yaml:"suites"`
}

// Suite declares a suite with its cases and child suites
type Suite struct {
	Name   string  `yaml:"name"`
	Cases  []Case  `yaml:"cases,omitempty"`
	Suites []Suite `yaml:"suites,omitempty"`
}

// Case declares a test case. A case either runs commands or lists
// pre-recorded results.
type Case struct {
	Name    string             `yaml:"name"`
	Build   string             `yaml:"build,omitempty"`
	Run     string             `yaml:"run,omitempty"`
	Expect  Expectation        `yaml:"expect,omitempty"`
	Stdout  *string            `yaml:"stdout,omitempty"`
	Stdin   string             `yaml:"stdin,omitempty"`
	Env     map[string]string  `yaml:"env,omitempty"`
	Results []unittest.Outcome `yaml:"results,omitempty"`
}

// Parse decodes a manifest from YAML. Unknown keys are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Load reads and decodes a manifest file
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// LoadAll loads every manifest concurrently. The result keeps the order of
// paths; the first error cancels the remaining loads.
func LoadAll(ctx context.Context, paths []string) ([]*Manifest, error) {
	manifests := make([]*Manifest, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := Load(path)
			if err != nil {
				return err
			}
			manifests[i] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return manifests, nil
}

// CheckVersion verifies harnessVersion satisfies the manifest's requires
// constraint. Manifests without a constraint always pass; so does a
// development build ("dev").
func (m *Manifest) CheckVersion(harnessVersion string) error {
	if m.Requires == "" || harnessVersion == "dev" {
		return nil
	}

	constraints, err := version.NewConstraint(m.Requires)
	if err != nil {
		return fmt.Errorf("invalid requires %q: %w", m.Requires, err)
	}

	v, err := version.NewVersion(harnessVersion)
	if err != nil {
		return fmt.Errorf("invalid harness version %q: %w", harnessVersion, err)
	}

	if !constraints.Check(v) {
		return fmt.Errorf("%w: %s does not match %q", ErrVersion, v, m.Requires)
	}
	return nil
}

// Validate reports every problem found in the manifest
func (m *Manifest) Validate() error {
	var result *multierror.Error

	if m.Requires != "" {
		if _, err := version.NewConstraint(m.Requires); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid requires %q: %w", m.Requires, err))
		}
	}

	if len(m.Suites) == 0 {
		result = multierror.Append(result, errors.New("no suites declared"))
	}

	for i := range m.Suites {
		result = validateSuite(result, &m.Suites[i], fmt.Sprintf("suites[%d]", i))
	}

	return result.ErrorOrNil()
}

func validateSuite(result *multierror.Error, s *Suite, where string) *multierror.Error {
	if s.Name == "" {
		result = multierror.Append(result, fmt.Errorf("%s: suite name is empty", where))
	} else {
		where = s.Name
	}

	for i := range s.Cases {
		result = validateCase(result, &s.Cases[i], fmt.Sprintf("%s/cases[%d]", where, i))
	}
	for i := range s.Suites {
		result = validateSuite(result, &s.Suites[i], fmt.Sprintf("%s/suites[%d]", where, i))
	}
	return result
}

func validateCase(result *multierror.Error, c *Case, where string) *multierror.Error {
	if c.Name == "" {
		result = multierror.Append(result, fmt.Errorf("%s: case name is empty", where))
	}

	switch c.Expect {
	case "", ExpectOutput, ExpectBuildError, ExpectRuntimeError:
	default:
		result = multierror.Append(result, fmt.Errorf("%s: unknown expect %q", where, c.Expect))
	}

	hasCommand := c.Build != "" || c.Run != ""
	if !hasCommand && len(c.Results) == 0 {
		result = multierror.Append(result, fmt.Errorf("%s: case needs a build/run command or results", where))
	}
	return result
}
