package unittest

import "errors"

var (
	// ErrNilCase is returned when a result is appended to an absent case.
	ErrNilCase = errors.New("unittest: nil test case")
	// ErrNoResults is returned by AddResults when called without outcomes.
	ErrNoResults = errors.New("unittest: no results given")
	// ErrResultLimit is returned when a case's result log is full.
	// The log is left unchanged.
	ErrResultLimit = errors.New("unittest: result log limit reached")
	// ErrReleased is returned when appending to a destroyed case.
	ErrReleased = errors.New("unittest: test case was destroyed")
	// ErrUnknownOutcome is returned when parsing an unknown outcome name.
	ErrUnknownOutcome = errors.New("unittest: unknown outcome")
)
