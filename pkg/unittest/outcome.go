package unittest

import (
	"fmt"
	"strings"
)

// ANSI escape codes used by the tree renderer
const (
	ANSIReset  = "\033[0m"
	ANSIGreen  = "\033[32m"
	ANSIYellow = "\033[33m"
	ANSIRed    = "\033[31m"
	ANSIGray   = "\033[90m"
)

// Outcome is the result of a single test invocation or a manually recorded result
type Outcome int

const (
	Success              Outcome = iota // K (green)
	UnexpectedOutput                    // K (yellow)
	ExpectedBuildError                  // B (gray)
	BuildError                          // B (red)
	ExpectedRuntimeError                // R (gray)
	RuntimeError                        // R (red)
)

// Outcomes lists every outcome in declaration order
var Outcomes = []Outcome{
	Success,
	UnexpectedOutput,
	ExpectedBuildError,
	BuildError,
	ExpectedRuntimeError,
	RuntimeError,
}

var outcomeNames = map[Outcome]string{
	Success:              "success",
	UnexpectedOutput:     "unexpected_output",
	ExpectedBuildError:   "expected_build_error",
	BuildError:           "build_error",
	ExpectedRuntimeError: "expected_runtime_error",
	RuntimeError:         "runtime_error",
}

// Glyph returns the one-letter symbol shown in the tree: K, B or R
func (o Outcome) Glyph() byte {
	switch o {
	case Success, UnexpectedOutput:
		return 'K'
	case ExpectedBuildError, BuildError:
		return 'B'
	case ExpectedRuntimeError, RuntimeError:
		return 'R'
	default:
		return '?'
	}
}

// Color returns the ANSI color the glyph is printed in
func (o Outcome) Color() string {
	switch o {
	case Success:
		return ANSIGreen
	case UnexpectedOutput:
		return ANSIYellow
	case ExpectedBuildError, ExpectedRuntimeError:
		return ANSIGray
	case BuildError, RuntimeError:
		return ANSIRed
	default:
		return ANSIReset
	}
}

// Failing reports whether the outcome is the unexpected variant of its K/B/R pair
func (o Outcome) Failing() bool {
	return o == UnexpectedOutput || o == BuildError || o == RuntimeError
}

// Valid reports whether o is one of the six known outcomes
func (o Outcome) Valid() bool {
	_, ok := outcomeNames[o]
	return ok
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ParseOutcome converts a snake_case outcome name (as written in manifests
// and the history database) back to an Outcome
func ParseOutcome(s string) (Outcome, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for o, n := range outcomeNames {
		if n == name {
			return o, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOutcome, s)
}

// MarshalText implements encoding.TextMarshaler
func (o Outcome) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOutcome, int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
