package unittest

import (
	"io"
	"os"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
)

// DefaultColumn is the column suite statistics are aligned to
const DefaultColumn = 50

// CaseObserver is called after a case's test function has run and its
// outcome has been recorded. path holds the names of the enclosing suites.
type CaseObserver func(path []string, c *Case, o Outcome, elapsed time.Duration)

// Options configures a Runner.
type Options struct {
	// Output receives the legend and the result tree.
	// Default: os.Stdout.
	Output io.Writer

	// Logger receives diagnostics such as failed result appends.
	Logger log.Logger

	// Column is the column the statistics of every suite line end up at.
	// Zero or negative values use DefaultColumn.
	Column int

	// Color wraps glyphs and counters in ANSI escape sequences.
	// Default: true.
	Color bool

	// NestedExecution makes Execute descend into child suites. When false only
	// the cases of top-level suites are run.
	// Default: true.
	NestedExecution bool

	// Observer is notified of every executed case. Optional.
	Observer CaseObserver
}

// Option is a functional option for configuring Runner.
type Option func(*Options)

// WithOutput sets the writer the report is printed to. Nil is ignored.
func WithOutput(w io.Writer) Option {
	return func(o *Options) {
		if w != nil {
			o.Output = w
		}
	}
}

// WithLogger sets the diagnostic logger. Nil is ignored.
func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithColumn sets the statistics column.
// Zero or negative values are ignored.
func WithColumn(column int) Option {
	return func(o *Options) {
		if column > 0 {
			o.Column = column
		}
	}
}

// WithColor enables or disables ANSI colors.
func WithColor(enabled bool) Option {
	return func(o *Options) {
		o.Color = enabled
	}
}

// WithNestedExecution controls whether child suites are executed.
func WithNestedExecution(enabled bool) Option {
	return func(o *Options) {
		o.NestedExecution = enabled
	}
}

// WithObserver registers a callback for executed cases.
func WithObserver(observer CaseObserver) Option {
	return func(o *Options) {
		o.Observer = observer
	}
}

func newDefaultOptions() Options {
	return Options{
		Color:           true,
		NestedExecution: true,
	}
}

func applyDefaults(opts *Options) {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}
	if opts.Column <= 0 {
		opts.Column = DefaultColumn
	}
}
