package vectorclock

import "testing"

import "github.com/stretchr/testify/require"

func TestMergeCommutativeAssociativeIdempotent(t *testing.T) {
	a := Clock{"a": 2, "b": 1}
	b := Clock{"a": 1, "b": 3, "c": 1}
	c := Clock{"c": 5}

	require.True(t, a.Merge(b).Equal(b.Merge(a)))
	require.True(t, a.Merge(b.Merge(c)).Equal(a.Merge(b).Merge(c)))
	require.True(t, a.Merge(a).Equal(a))
}

func TestIncrementMonotonic(t *testing.T) {
	a := Zero("actor1")
	b := a.Increment("actor1")
	require.Equal(t, uint64(0), a["actor1"])
	require.Equal(t, uint64(1), b["actor1"])
}

func TestHappensBeforeIrreflexiveAntisymmetricTransitive(t *testing.T) {
	a := Clock{"x": 1}
	b := Clock{"x": 2}
	c := Clock{"x": 3}

	require.False(t, a.HappensBefore(a))
	require.True(t, a.HappensBefore(b))
	require.False(t, b.HappensBefore(a))
	require.True(t, b.HappensBefore(c))
	require.True(t, a.HappensBefore(c))
}

func TestConcurrentWith(t *testing.T) {
	a := Clock{"x": 1, "y": 0}
	b := Clock{"x": 0, "y": 1}
	require.True(t, a.ConcurrentWith(b))
	require.True(t, b.ConcurrentWith(a))
}
