package paxos

import (
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"

	"paxsim.io/paxsim/common"
	"paxsim.io/paxsim/msgs"
)

func deliver(t *testing.T, node Node, now common.Instant, from common.Address, body msgs.Body) []msgs.Msg {
	t.Helper()
	node.Receive(msgs.Msg{
		Header: msgs.Header{From: from, To: node.Address(), At: now},
		Body:   body,
	})
	return node.Process(now)
}

func TestAcceptorPromisesFreshPrepare(t *testing.T) {
	a := NewAcceptor("a0", Classic, log.NewNopLogger())

	out := deliver(t, a, 1, "p0", msgs.Prepare{Epoch: common.NewEpoch(0, 0)})
	require.Len(t, out, 1)
	require.Equal(t, common.Address("p0"), out[0].To)
	require.Equal(t, common.Address("a0"), out[0].From)
	require.Equal(t, common.Instant(2), out[0].At)
	require.Equal(t, msgs.Promise{Epoch: common.NewEpoch(0, 0)}, out[0].Body)

	promised, ok := a.Promised()
	require.True(t, ok)
	require.Equal(t, common.NewEpoch(0, 0), promised)
}

func TestAcceptorIgnoresPrepareBelowPromise(t *testing.T) {
	a := NewAcceptor("a0", Classic, log.NewNopLogger())

	deliver(t, a, 1, "p1", msgs.Prepare{Epoch: common.NewEpoch(3, 1)})
	out := deliver(t, a, 2, "p0", msgs.Prepare{Epoch: common.NewEpoch(2, 0)})
	require.Empty(t, out)

	// The promise is untouched.
	promised, ok := a.Promised()
	require.True(t, ok)
	require.Equal(t, common.NewEpoch(3, 1), promised)
}

func TestAcceptorRepromisesAtPromisedEpoch(t *testing.T) {
	// A Prepare at exactly the promised epoch re-promises and
	// re-replies: the comparison is strict, which keeps duplicate
	// Prepares from the same proposer idempotent.
	a := NewAcceptor("a0", Classic, log.NewNopLogger())
	e := common.NewEpoch(1, 0)

	first := deliver(t, a, 1, "p0", msgs.Prepare{Epoch: e})
	require.Len(t, first, 1)
	require.Nil(t, first[0].Body.(msgs.Promise).Accepted)

	deliver(t, a, 2, "p0", msgs.Propose{Epoch: e, Value: "v"})

	second := deliver(t, a, 3, "p0", msgs.Prepare{Epoch: e})
	require.Len(t, second, 1)
	accepted := second[0].Body.(msgs.Promise).Accepted
	require.NotNil(t, accepted)
	require.Equal(t, msgs.Accepted{Epoch: e, Value: "v"}, *accepted)
}

func TestAcceptorAcceptsProposal(t *testing.T) {
	a := NewAcceptor("a0", Classic, log.NewNopLogger())
	e := common.NewEpoch(0, 0)

	deliver(t, a, 1, "p0", msgs.Prepare{Epoch: e})
	out := deliver(t, a, 2, "p0", msgs.Propose{Epoch: e, Value: "v"})
	require.Len(t, out, 1)
	require.Equal(t, msgs.Accept{Epoch: e}, out[0].Body)

	require.NotNil(t, a.Accepted())
	require.Equal(t, msgs.Accepted{Epoch: e, Value: "v"}, *a.Accepted())
}

func TestAcceptorIgnoresProposeBelowPromise(t *testing.T) {
	a := NewAcceptor("a0", Classic, log.NewNopLogger())

	deliver(t, a, 1, "p1", msgs.Prepare{Epoch: common.NewEpoch(5, 1)})
	out := deliver(t, a, 2, "p0", msgs.Propose{Epoch: common.NewEpoch(4, 0), Value: "v"})
	require.Empty(t, out)
	require.Nil(t, a.Accepted())
}

func TestAcceptorPromiseNeverRegresses(t *testing.T) {
	a := NewAcceptor("a0", Classic, log.NewNopLogger())

	epochs := []common.Epoch{
		common.NewEpoch(0, 0),
		common.NewEpoch(2, 1),
		common.NewEpoch(1, 0), // below: ignored
		common.NewEpoch(2, 1), // equal: re-promised
		common.NewEpoch(3, 0),
	}
	var last common.Epoch
	for idx, e := range epochs {
		deliver(t, a, common.Instant(idx+1), "p0", msgs.Prepare{Epoch: e})
		promised, ok := a.Promised()
		require.True(t, ok)
		require.False(t, last.GreaterThan(promised), "promise regressed at step %d", idx)
		last = promised
	}
	require.Equal(t, common.NewEpoch(3, 0), last)
}

func TestAcceptorAcceptRaisesPromise(t *testing.T) {
	// A proposal accepted ahead of its own (delayed) Prepare must not
	// leave the accepted epoch above the promise.
	a := NewAcceptor("a0", Classic, log.NewNopLogger())
	e := common.NewEpoch(2, 0)

	deliver(t, a, 1, "p0", msgs.Propose{Epoch: e, Value: "v"})
	promised, ok := a.Promised()
	require.True(t, ok)
	require.Equal(t, e, promised)
}

func TestNackAcceptorRejectsExplicitly(t *testing.T) {
	a := NewAcceptor("a0", Nack, log.NewNopLogger())

	deliver(t, a, 1, "p1", msgs.Prepare{Epoch: common.NewEpoch(3, 1)})

	out := deliver(t, a, 2, "p0", msgs.Prepare{Epoch: common.NewEpoch(2, 0)})
	require.Len(t, out, 1)
	require.Equal(t, msgs.Nack{
		Declined: common.NewEpoch(2, 0),
		Promised: common.NewEpoch(3, 1),
	}, out[0].Body)

	out = deliver(t, a, 3, "p0", msgs.Propose{Epoch: common.NewEpoch(2, 0), Value: "v"})
	require.Len(t, out, 1)
	require.Equal(t, msgs.Nack{
		Declined: common.NewEpoch(2, 0),
		Promised: common.NewEpoch(3, 1),
	}, out[0].Body)
}

func TestAcceptorTrapsImpossibleBody(t *testing.T) {
	a := NewAcceptor("a0", Classic, log.NewNopLogger())
	require.Panics(t, func() {
		deliver(t, a, 1, "p0", msgs.Promise{Epoch: common.NewEpoch(0, 0)})
	})
}
