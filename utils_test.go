package paxsim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpDelayEngineRespectsCap(t *testing.T) {
	ede := NewExpDelayEngine(rand.New(rand.NewSource(1)), MsgDelayRate, MaxMsgDelay)
	for idx := 0; idx < 10000; idx++ {
		require.LessOrEqual(t, ede.Sample(), uint64(MaxMsgDelay))
	}
}

func TestExpDelayEngineReproducible(t *testing.T) {
	first := NewExpDelayEngine(rand.New(rand.NewSource(7)), MsgDelayRate, MaxMsgDelay)
	second := NewExpDelayEngine(rand.New(rand.NewSource(7)), MsgDelayRate, MaxMsgDelay)
	for idx := 0; idx < 1000; idx++ {
		require.Equal(t, first.Sample(), second.Sample())
	}
}

func TestExpDelayEngineRejectsBadRate(t *testing.T) {
	require.Nil(t, NewExpDelayEngine(rand.New(rand.NewSource(1)), 0, MaxMsgDelay))
}
