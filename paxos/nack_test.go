package paxos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"paxsim.io/paxsim/common"
	"paxsim.io/paxsim/msgs"
)

func TestNackProposerRestartsWithoutTimeout(t *testing.T) {
	p := newTestProposer(Nack)
	request(t, p, 1, "c0", "v1")

	// A competing proposer got its epoch 4-1 promised first; the nack
	// lets us catch up immediately instead of waiting out the timeout.
	out := deliver(t, p, 3, "a0", msgs.Nack{
		Declined: common.NewEpoch(0, 0),
		Promised: common.NewEpoch(4, 1),
	})
	require.Len(t, out, 3)
	require.Equal(t, msgs.Prepare{Epoch: common.NewEpoch(5, 0)}, out[0].Body)
	require.Equal(t, common.NewEpoch(5, 0), p.Epoch())
}

func TestNackProposerRestartsWhileProposing(t *testing.T) {
	p := newTestProposer(Nack)
	request(t, p, 1, "c0", "v1")
	deliver(t, p, 3, "a0", msgs.Promise{Epoch: common.NewEpoch(0, 0)})
	deliver(t, p, 3, "a1", msgs.Promise{Epoch: common.NewEpoch(0, 0)})

	out := deliver(t, p, 5, "a2", msgs.Nack{
		Declined: common.NewEpoch(0, 0),
		Promised: common.NewEpoch(2, 1),
	})
	require.Len(t, out, 3)
	require.Equal(t, msgs.Prepare{Epoch: common.NewEpoch(3, 0)}, out[0].Body)
}

func TestNackProposerIgnoresStaleNack(t *testing.T) {
	p := newTestProposer(Nack)
	request(t, p, 1, "c0", "v1")

	out := deliver(t, p, 3, "a0", msgs.Nack{
		Declined: common.NewEpoch(7, 0), // not our current epoch
		Promised: common.NewEpoch(9, 1),
	})
	require.Empty(t, out)
	require.Equal(t, common.NewEpoch(0, 0), p.Epoch())
}

func TestIdleNackProposerIgnoresNack(t *testing.T) {
	p := newTestProposer(Nack)

	out := deliver(t, p, 3, "a0", msgs.Nack{
		Declined: common.NewEpoch(0, 0),
		Promised: common.NewEpoch(4, 1),
	})
	require.Empty(t, out)
	require.Equal(t, common.NewEpoch(0, 0), p.Epoch())
}

func TestClassicProposerTrapsNack(t *testing.T) {
	p := newTestProposer(Classic)
	request(t, p, 1, "c0", "v1")
	require.Panics(t, func() {
		deliver(t, p, 3, "a0", msgs.Nack{
			Declined: common.NewEpoch(0, 0),
			Promised: common.NewEpoch(4, 1),
		})
	})
}
