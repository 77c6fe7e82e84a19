package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

func TestParseErrorPolicy(t *testing.T) {
	for _, s := range []string{"", "fast_fail", "FastFail", "fast-fail"} {
		p, err := ParseErrorPolicy(s)
		require.NoError(t, err, s)
		assert.Equal(t, FastFail, p)
	}

	p, err := ParseErrorPolicy(" Accumulate ")
	require.NoError(t, err)
	assert.Equal(t, Accumulate, p)

	_, err = ParseErrorPolicy("retry")
	require.Error(t, err)
	assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeConfig))
}

func TestParseFileExistsPolicy(t *testing.T) {
	p, err := ParseFileExistsPolicy("")
	require.NoError(t, err)
	assert.Equal(t, Overwrite, p)

	p, err = ParseFileExistsPolicy("append")
	require.NoError(t, err)
	assert.Equal(t, Append, p)
	assert.Equal(t, "append", p.String())

	_, err = ParseFileExistsPolicy("merge")
	assert.Error(t, err)
}

func TestAggregateErrorFormat(t *testing.T) {
	cause := errors.New("permission denied")
	agg := &AggregateError{Errors: []*UnitError{
		unitError("in", PhaseOpen, cause),
		unitError("out", PhaseWrite, errors.New("disk full")),
	}}

	assert.Equal(t,
		"I/O encountered 2 error(s):\n  #1: [Open] in: permission denied\n  #2: [Write] out: disk full",
		agg.Error())
	assert.ErrorIs(t, agg, cause)
	assert.Equal(t, "out", agg.ForID("out").ID)
	assert.Nil(t, agg.ForID("missing"))
}

func TestOutcomeFolds(t *testing.T) {
	slots := []outcome{
		success([]value.Value{value.Int(1)}),
		failure(unitError("b", PhaseParse, errors.New("bad"))),
		success([]value.Value{value.Int(2), value.Int(3)}),
		failure(unitError("d", PhaseRead, errors.New("eof"))),
	}

	t.Run("accumulate keeps every value and failure in order", func(t *testing.T) {
		r := accumulate(slots)
		assert.True(t, value.EqualAll([]value.Value{value.Int(1), value.Int(2), value.Int(3)}, r.values))
		require.Len(t, r.failures, 2)
		assert.Equal(t, "b", r.failures[0].ID)
		assert.Equal(t, "d", r.failures[1].ID)
	})

	t.Run("short circuit stops at the first failure", func(t *testing.T) {
		r := shortCircuit(slots)
		require.Len(t, r.failures, 1)
		assert.Equal(t, "b", r.failures[0].ID)
		assert.Len(t, r.values, 1)
	})

	t.Run("combine is associative", func(t *testing.T) {
		a, b, c := slots[0], slots[1], slots[2]
		left := a.combine(b).combine(c)
		right := a.combine(b.combine(c))
		assert.True(t, value.EqualAll(left.values, right.values))
		assert.Equal(t, left.failures, right.failures)
	})

	t.Run("empty fold is success", func(t *testing.T) {
		assert.NoError(t, accumulate(nil).err())
	})
}
