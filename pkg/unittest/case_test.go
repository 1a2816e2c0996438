package unittest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddResult_Growth(t *testing.T) {
	c := NewCase("grow", nil)
	assert.Zero(t, c.Cap())

	require.NoError(t, c.AddResult(Success))
	assert.Equal(t, InitialResultCapacity, c.Cap())

	for i := 1; i < InitialResultCapacity; i++ {
		require.NoError(t, c.AddResult(BuildError))
	}
	assert.Equal(t, InitialResultCapacity, c.Len())
	assert.Equal(t, InitialResultCapacity, c.Cap())

	// ninth append doubles the capacity
	require.NoError(t, c.AddResult(RuntimeError))
	assert.Equal(t, 9, c.Len())
	assert.Equal(t, 2*InitialResultCapacity, c.Cap())

	results := c.Results()
	assert.Equal(t, Success, results[0])
	assert.Equal(t, RuntimeError, results[8])
}

func TestAddResult_Limit(t *testing.T) {
	c := NewCase("limited", nil, WithResultLimit(2))
	require.NoError(t, c.AddResult(Success))
	require.NoError(t, c.AddResult(UnexpectedOutput))
	assert.Equal(t, 2, c.Cap())

	err := c.AddResult(RuntimeError)
	assert.ErrorIs(t, err, ErrResultLimit)
	assert.Equal(t, []Outcome{Success, UnexpectedOutput}, c.Results())
}

func TestAddResult_NilAndReleased(t *testing.T) {
	var c *Case
	assert.ErrorIs(t, c.AddResult(Success), ErrNilCase)
	assert.ErrorIs(t, c.AddResults(Success), ErrNilCase)

	c = NewCase("gone", nil)
	c.Destroy()
	assert.ErrorIs(t, c.AddResult(Success), ErrReleased)
	assert.Zero(t, c.Len())
}

func TestAddResults(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c := NewCase("c", nil)
		require.NoError(t, c.AddResult(Success))

		assert.ErrorIs(t, c.AddResults(), ErrNoResults)
		assert.Equal(t, []Outcome{Success}, c.Results())
	})

	t.Run("in order", func(t *testing.T) {
		c := NewCase("c", nil)
		require.NoError(t, c.AddResults(Success, BuildError, ExpectedRuntimeError))
		assert.Equal(t, []Outcome{Success, BuildError, ExpectedRuntimeError}, c.Results())
	})

	t.Run("partial failure keeps prefix", func(t *testing.T) {
		c := NewCase("c", nil, WithResultLimit(3))
		err := c.AddResults(Success, Success, BuildError, RuntimeError, RuntimeError)
		assert.ErrorIs(t, err, ErrResultLimit)
		assert.Equal(t, []Outcome{Success, Success, BuildError}, c.Results())
	})
}

func TestCase_ResultsIsCopy(t *testing.T) {
	c := NewCase("c", nil)
	require.NoError(t, c.AddResult(Success))

	results := c.Results()
	results[0] = RuntimeError
	assert.Equal(t, []Outcome{Success}, c.Results())
}

func TestCase_Destroy(t *testing.T) {
	c := NewCase("c", func() Outcome { return Success })
	require.NoError(t, c.AddResult(Success))

	c.Destroy()
	assert.True(t, c.Released())
	assert.Empty(t, c.Name())
	assert.False(t, c.Runnable())
	assert.Nil(t, c.Results())

	// second destroy and nil destroy are no-ops
	c.Destroy()
	var nilCase *Case
	nilCase.Destroy()
	assert.False(t, nilCase.Released())
}

func TestDestroyCaseChain(t *testing.T) {
	a, b := NewCase("a", nil), NewCase("b", nil)
	chain := []*Case{a, nil, b}

	DestroyCaseChain(chain...)
	assert.True(t, a.Released())
	assert.True(t, b.Released())
	assert.Equal(t, []*Case{nil, nil, nil}, chain)
}
