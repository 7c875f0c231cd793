package sim

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"paxsim.io/paxsim"
	"paxsim.io/paxsim/common"
	"paxsim.io/paxsim/msgs"
	"paxsim.io/paxsim/paxos"
)

// RequestSpec schedules one client request: arrival instant, index of
// the target proposer, and the proposed value.
type RequestSpec struct {
	At       common.Instant
	Proposer int
	Value    common.Value
}

// Builder assembles a populated simulation. Proposers are named p{i}
// and own Epoch{0, i}; acceptors are named a{i}; the client behind
// request j is c{j}. Every proposer knows the full acceptor list.
type Builder struct {
	variant   paxos.Variant
	proposers int
	acceptors int
	requests  []RequestSpec
	delaySeed *int64
	timeout   common.Instant
}

func NewBuilder() *Builder {
	return &Builder{
		variant: paxos.Classic,
		timeout: paxsim.ProposerTimeout,
	}
}

func (b *Builder) WithVariant(variant paxos.Variant) *Builder {
	b.variant = variant
	return b
}

func (b *Builder) WithProposers(count int) *Builder {
	b.proposers = count
	return b
}

func (b *Builder) WithAcceptors(count int) *Builder {
	b.acceptors = count
	return b
}

func (b *Builder) WithRequest(at common.Instant, proposer int, value common.Value) *Builder {
	b.requests = append(b.requests, RequestSpec{At: at, Proposer: proposer, Value: value})
	return b
}

func (b *Builder) WithRequests(specs ...RequestSpec) *Builder {
	b.requests = append(b.requests, specs...)
	return b
}

// WithDelaySeed turns on random message delay, reproducible from the
// seed.
func (b *Builder) WithDelaySeed(seed int64) *Builder {
	b.delaySeed = &seed
	return b
}

func (b *Builder) WithTimeout(timeout common.Instant) *Builder {
	b.timeout = timeout
	return b
}

func (b *Builder) Build() (*Simulator, error) {
	if b.proposers < 1 {
		return nil, errors.Errorf("a simulation needs at least one proposer, got %d", b.proposers)
	}
	if b.acceptors < 1 {
		return nil, errors.Errorf("a simulation needs at least one acceptor, got %d", b.acceptors)
	}
	if b.timeout < 1 {
		return nil, errors.Errorf("proposer timeout must be positive, got %v", b.timeout)
	}

	var delay *paxsim.ExpDelayEngine
	if b.delaySeed != nil {
		rng := rand.New(rand.NewSource(*b.delaySeed))
		delay = paxsim.NewExpDelayEngine(rng, paxsim.MsgDelayRate, paxsim.MaxMsgDelay)
	}

	s := NewSimulator(b.variant, delay)

	acceptorAddrs := make([]common.Address, b.acceptors)
	for idx := 0; idx < b.acceptors; idx++ {
		acceptorAddrs[idx] = common.Address(fmt.Sprintf("a%d", idx))
	}
	for _, addr := range acceptorAddrs {
		s.AddAcceptor(paxos.NewAcceptor(addr, b.variant, s.Logger()))
	}

	proposerAddrs := make([]common.Address, b.proposers)
	for idx := 0; idx < b.proposers; idx++ {
		proposerAddrs[idx] = common.Address(fmt.Sprintf("p%d", idx))
		p := paxos.NewProposer(proposerAddrs[idx], common.NewEpoch(0, uint32(idx)), acceptorAddrs, b.variant, s.Logger())
		p.SetTimeout(b.timeout)
		s.AddProposer(p)
	}

	for idx, spec := range b.requests {
		if spec.Proposer < 0 || spec.Proposer >= b.proposers {
			return nil, errors.Errorf("request %d targets proposer %d, have %d proposers",
				idx, spec.Proposer, b.proposers)
		}
		value := spec.Value
		if value == "" {
			value = common.Value(fmt.Sprintf("v%d", idx))
		}
		s.AddRequest(msgs.Msg{
			Header: msgs.Header{
				From: common.Address(fmt.Sprintf("c%d", idx)),
				To:   proposerAddrs[spec.Proposer],
				At:   spec.At,
			},
			Body: msgs.Request{Value: value},
		})
	}

	return s, nil
}
