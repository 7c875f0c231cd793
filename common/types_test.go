package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEpochOrdering(t *testing.T) {
	// Lexicographic on (counter, identifier): the identifier
	// disambiguates, so epochs of distinct proposers never tie.
	require.True(t, NewEpoch(2, 0).GreaterThan(NewEpoch(1, 9)))
	require.True(t, NewEpoch(1, 1).GreaterThan(NewEpoch(1, 0)))
	require.False(t, NewEpoch(1, 0).GreaterThan(NewEpoch(1, 0)))
	require.True(t, NewEpoch(1, 0).Equal(NewEpoch(1, 0)))
	require.False(t, NewEpoch(1, 0).Equal(NewEpoch(1, 1)))
	require.True(t, NewEpoch(0, 3).LessThan(NewEpoch(0, 4)))
}

func TestEpochNext(t *testing.T) {
	e := NewEpoch(4, 7)
	next := e.Next()
	require.Equal(t, NewEpoch(5, 7), next)
	require.True(t, next.GreaterThan(e))
	require.Equal(t, "5-7", next.String())
}

func TestInstantArithmetic(t *testing.T) {
	require.Equal(t, Instant(11), Instant(10).Add(1))
	require.Equal(t, Instant(15), Instant(10).AddInstant(Instant(5)))
	require.Equal(t, Instant(3), Instant(10).Sub(Instant(7)))
}

func TestInstantSubUnderflowPanics(t *testing.T) {
	require.Panics(t, func() {
		Instant(3).Sub(Instant(4))
	})
}
