package unittest

// Suite is a named node owning an ordered list of test cases and an ordered
// list of child suites
type Suite struct {
	name     string
	cases    []*Case
	children []*Suite
	stats    Stats
	owned    bool
	released bool
}

// NewSuite creates an empty suite
func NewSuite(name string) *Suite {
	return &Suite{name: name}
}

// Name returns the suite name
func (s *Suite) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Cases returns the suite's own test cases in insertion order
func (s *Suite) Cases() []*Case {
	if s == nil {
		return nil
	}
	return append([]*Case(nil), s.cases...)
}

// Children returns the child suites in insertion order
func (s *Suite) Children() []*Suite {
	if s == nil {
		return nil
	}
	return append([]*Suite(nil), s.children...)
}

// Stats returns the statistics computed by the last Aggregate call
func (s *Suite) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return s.stats
}

// Released reports whether Destroy has been called on the suite
func (s *Suite) Released() bool {
	return s != nil && s.released
}

// AddChild appends child to the end of the child suites. Nil arguments,
// the suite itself and suites already owned by another parent are ignored.
func (s *Suite) AddChild(child *Suite) {
	if s == nil || child == nil || child == s {
		return
	}
	if s.released || child.released || child.owned {
		return
	}
	child.owned = true
	s.children = append(s.children, child)
}

// AddCase appends c to the end of the suite's cases with the same rules as AddChild
func (s *Suite) AddCase(c *Case) {
	if s == nil || c == nil {
		return
	}
	if s.released || c.released || c.owned {
		return
	}
	c.owned = true
	s.cases = append(s.cases, c)
}

// Destroy destroys every case and every child suite, recursively, then
// releases the suite itself. Safe on nil and on an already destroyed suite.
func (s *Suite) Destroy() {
	if s == nil || s.released {
		return
	}
	DestroyCaseChain(s.cases...)
	s.cases = nil
	DestroySuiteChain(s.children...)
	s.children = nil
	s.name = ""
	s.stats = Stats{}
	s.owned = false
	s.released = true
}

// DestroySuiteChain destroys each suite in order, detaching it from the
// list before destroying it
func DestroySuiteChain(suites ...*Suite) {
	for i, s := range suites {
		suites[i] = nil
		s.Destroy()
	}
}
