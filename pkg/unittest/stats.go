package unittest

// Stats holds one counter per Outcome. It is derived data, recomputed from
// scratch by Aggregate.
type Stats struct {
	Success              int
	UnexpectedOutput     int
	ExpectedBuildError   int
	BuildError           int
	ExpectedRuntimeError int
	RuntimeError         int
}

// Count returns the counter for o
func (s Stats) Count(o Outcome) int {
	switch o {
	case Success:
		return s.Success
	case UnexpectedOutput:
		return s.UnexpectedOutput
	case ExpectedBuildError:
		return s.ExpectedBuildError
	case BuildError:
		return s.BuildError
	case ExpectedRuntimeError:
		return s.ExpectedRuntimeError
	case RuntimeError:
		return s.RuntimeError
	default:
		return 0
	}
}

// record increments the counter for o. Unknown outcomes are not counted.
func (s *Stats) record(o Outcome) {
	switch o {
	case Success:
		s.Success++
	case UnexpectedOutput:
		s.UnexpectedOutput++
	case ExpectedBuildError:
		s.ExpectedBuildError++
	case BuildError:
		s.BuildError++
	case ExpectedRuntimeError:
		s.ExpectedRuntimeError++
	case RuntimeError:
		s.RuntimeError++
	}
}

// Add adds other's counters into s
func (s *Stats) Add(other Stats) {
	s.Success += other.Success
	s.UnexpectedOutput += other.UnexpectedOutput
	s.ExpectedBuildError += other.ExpectedBuildError
	s.BuildError += other.BuildError
	s.ExpectedRuntimeError += other.ExpectedRuntimeError
	s.RuntimeError += other.RuntimeError
}

// Total returns the number of results counted
func (s Stats) Total() int {
	return s.Success + s.UnexpectedOutput +
		s.ExpectedBuildError + s.BuildError +
		s.ExpectedRuntimeError + s.RuntimeError
}

// Failures returns the number of failing results (the red and yellow ones)
func (s Stats) Failures() int {
	return s.UnexpectedOutput + s.BuildError + s.RuntimeError
}

// Aggregate recomputes suite's statistics: the results of its own cases plus
// the already aggregated statistics of each child, children first.
func Aggregate(suite *Suite) {
	if suite == nil {
		return
	}

	suite.stats = Stats{}

	for _, c := range suite.cases {
		for _, o := range c.results {
			suite.stats.record(o)
		}
	}

	for _, child := range suite.children {
		Aggregate(child)
		suite.stats.Add(child.stats)
	}
}
