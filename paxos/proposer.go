package paxos

import (
	"fmt"

	"github.com/go-kit/kit/log"

	"paxsim.io/paxsim"
	"paxsim.io/paxsim/common"
	"paxsim.io/paxsim/msgs"
	"paxsim.io/paxsim/status"
)

// Proposer is the active Paxos role: a sequential, single-decree
// proposer handling one client request at a time. It is driven by
// client Requests, acceptor replies and its own re-prepare timeout.
//
// The mode-specific payload lives in the embedded state machine
// components below; currentState points at whichever mode the proposer
// is in.
type Proposer struct {
	logger       log.Logger
	addr         common.Address
	acceptors    []common.Address
	variant      Variant
	timeout      common.Instant
	inbox        []msgs.Msg
	epoch        common.Epoch
	currentState proposerStateMachineComponent
	proposerIdle
	proposerPreparing
	proposerProposing
}

func NewProposer(addr common.Address, initialEpoch common.Epoch, acceptors []common.Address, variant Variant, logger log.Logger) *Proposer {
	p := &Proposer{
		logger:    log.With(logger, "subsystem", "proposer", "addr", addr),
		addr:      addr,
		acceptors: acceptors,
		variant:   variant,
		timeout:   paxsim.ProposerTimeout,
		epoch:     initialEpoch,
	}
	p.proposerIdle.init(p)
	p.proposerPreparing.init(p)
	p.proposerProposing.init(p)
	p.currentState = &p.proposerIdle
	return p
}

// SetTimeout overrides the re-prepare threshold. Must be called before
// the first Process.
func (p *Proposer) SetTimeout(timeout common.Instant) {
	p.timeout = timeout
}

func (p *Proposer) Address() common.Address { return p.addr }

// Epoch exposes the proposer's current epoch for run-end auditing.
func (p *Proposer) Epoch() common.Epoch { return p.epoch }

func (p *Proposer) Receive(m msgs.Msg) {
	p.inbox = append(p.inbox, m)
}

func (p *Proposer) Process(now common.Instant) []msgs.Msg {
	inbox := p.inbox
	p.inbox = nil
	var out []msgs.Msg
	for _, m := range inbox {
		out = append(out, p.processMsg(m, now)...)
	}
	if len(out) > 0 {
		// We made progress, the timeout cannot have fired.
		return out
	}

	progressAt, running := p.currentState.lastProgressAt()
	if !running || now.Sub(progressAt) < p.timeout {
		return nil
	}

	// We timed out - back to preparing at a higher epoch.
	paxsim.DebugLog(p.logger, "msg", "Timed out, re-preparing.", "epoch", p.epoch, "at", now)
	p.epoch = p.epoch.Next()
	return p.retry(now)
}

func (p *Proposer) processMsg(m msgs.Msg, now common.Instant) []msgs.Msg {
	switch body := m.Body.(type) {
	case msgs.Request:
		return p.processRequest(m.Header, body.Value, now)
	case msgs.Promise:
		return p.processPromise(body, now)
	case msgs.Accept:
		return p.processAccept(body.Epoch, now)
	case msgs.Nack:
		if p.variant == Classic {
			panic(fmt.Sprintf("Proposer %v received nack in a classic run: %v", p.addr, m))
		}
		return p.processNack(body.Declined, body.Promised, now)
	default:
		panic(fmt.Sprintf("Proposer %v received impossible message: %v", p.addr, m))
	}
}

func (p *Proposer) processRequest(header msgs.Header, value common.Value, now common.Instant) []msgs.Msg {
	if p.currentState != &p.proposerIdle {
		// One decree at a time: hold the request back until the current
		// round is done. It must not be lost.
		p.inbox = append(p.inbox, msgs.Msg{Header: header, Body: msgs.Request{Value: value}})
		return nil
	}

	p.enterPreparing(now, value, header.From)
	return p.broadcastToAcceptors(msgs.Prepare{Epoch: p.epoch}, now)
}

func (p *Proposer) processPromise(body msgs.Promise, now common.Instant) []msgs.Msg {
	// Ignore any messages outside our current epoch.
	if !body.Epoch.Equal(p.epoch) {
		return nil
	}

	preparing, ok := p.currentState.(*proposerPreparing)
	if !ok {
		return nil
	}

	preparing.promises = append(preparing.promises, body)
	if len(preparing.promises) < p.majority() {
		preparing.progressAt = now
		return nil
	}

	// Quorum. If any acceptor already accepted a value we must adopt
	// the one from the highest-epoch accepted proposal; epochs are
	// globally unique, so there is never a tie to break.
	value := preparing.value
	var highest *msgs.Accepted
	for _, promise := range preparing.promises {
		if promise.Accepted == nil {
			continue
		}
		if highest == nil || promise.Accepted.Epoch.GreaterThan(highest.Epoch) {
			highest = promise.Accepted
		}
	}
	if highest != nil {
		value = highest.Value
	}

	p.enterProposing(now, value, preparing.client)
	return p.broadcastToAcceptors(msgs.Propose{Epoch: p.epoch, Value: value}, now)
}

func (p *Proposer) processAccept(epoch common.Epoch, now common.Instant) []msgs.Msg {
	// Ignore any messages outside our current epoch.
	if !epoch.Equal(p.epoch) {
		return nil
	}

	proposing, ok := p.currentState.(*proposerProposing)
	if !ok {
		return nil
	}

	proposing.receivedAccepts++
	if proposing.receivedAccepts < p.majority() {
		proposing.progressAt = now
		return nil
	}

	value, client := proposing.value, proposing.client
	paxsim.DebugLog(p.logger, "msg", "Decree decided.", "epoch", p.epoch, "value", value)
	p.epoch = p.epoch.Next()
	p.currentState = &p.proposerIdle

	return []msgs.Msg{{
		Header: msgs.Header{From: p.addr, To: client, At: now.Add(paxsim.MinTransitDelay)},
		Body:   msgs.Response{Value: value},
	}}
}

func (p *Proposer) processNack(declined, promised common.Epoch, now common.Instant) []msgs.Msg {
	// Ignore any messages outside our current epoch.
	if !declined.Equal(p.epoch) {
		return nil
	}

	if p.currentState == &p.proposerIdle {
		return nil
	}

	// No need to wait for the timeout: the nack tells us exactly which
	// epoch to catch up beyond.
	paxsim.DebugLog(p.logger, "msg", "Nacked, catching up.", "declined", declined, "promised", promised)
	p.epoch = common.NewEpoch(promised.Counter+1, p.epoch.Identifier)
	return p.retry(now)
}

// retry starts the client request all over with a fresh Prepare, after
// a timeout or a nack. The caller has already advanced the epoch.
func (p *Proposer) retry(now common.Instant) []msgs.Msg {
	value, client, ok := p.currentState.currentRound()
	if !ok {
		panic(fmt.Sprintf("Proposer %v retry from idle state", p.addr))
	}

	p.enterPreparing(now, value, client)
	return p.broadcastToAcceptors(msgs.Prepare{Epoch: p.epoch}, now)
}

func (p *Proposer) enterPreparing(now common.Instant, value common.Value, client common.Address) {
	p.proposerPreparing.progressAt = now
	p.proposerPreparing.value = value
	p.proposerPreparing.client = client
	p.proposerPreparing.promises = nil
	p.currentState = &p.proposerPreparing
}

func (p *Proposer) enterProposing(now common.Instant, value common.Value, client common.Address) {
	p.proposerProposing.progressAt = now
	p.proposerProposing.value = value
	p.proposerProposing.client = client
	p.proposerProposing.receivedAccepts = 0
	p.currentState = &p.proposerProposing
}

func (p *Proposer) majority() int {
	return len(p.acceptors)/2 + 1
}

func (p *Proposer) broadcastToAcceptors(b msgs.Body, now common.Instant) []msgs.Msg {
	out := make([]msgs.Msg, 0, len(p.acceptors))
	for _, acceptor := range p.acceptors {
		out = append(out, msgs.Msg{
			Header: msgs.Header{From: p.addr, To: acceptor, At: now.Add(paxsim.MinTransitDelay)},
			Body:   b,
		})
	}
	return out
}

func (p *Proposer) Status(sc *status.StatusConsumer) {
	sc.Emit(fmt.Sprintf("Proposer %v (%v)", p.addr, p.variant))
	sc.Emit(fmt.Sprintf("- Epoch: %v", p.epoch))
	sc.Emit(fmt.Sprintf("- State: %v", p.currentState))
	sc.Emit(fmt.Sprintf("- Inbox: %v", len(p.inbox)))
	sc.Join()
}

type proposerStateMachineComponent interface {
	init(*Proposer)
	lastProgressAt() (common.Instant, bool)
	currentRound() (common.Value, common.Address, bool)
	proposerStateMachineComponentWitness()
}

// idle

type proposerIdle struct {
	*Proposer
}

func (pi *proposerIdle) init(p *Proposer) { pi.Proposer = p }

func (pi *proposerIdle) lastProgressAt() (common.Instant, bool) { return 0, false }

func (pi *proposerIdle) currentRound() (common.Value, common.Address, bool) { return "", "", false }

func (pi *proposerIdle) proposerStateMachineComponentWitness() {}
func (pi *proposerIdle) String() string {
	return "proposerIdle"
}

// preparing: collecting promises for the current epoch

type proposerPreparing struct {
	*Proposer
	progressAt common.Instant
	value      common.Value
	client     common.Address
	promises   []msgs.Promise
}

func (pp *proposerPreparing) init(p *Proposer) { pp.Proposer = p }

func (pp *proposerPreparing) lastProgressAt() (common.Instant, bool) { return pp.progressAt, true }

func (pp *proposerPreparing) currentRound() (common.Value, common.Address, bool) {
	return pp.value, pp.client, true
}

func (pp *proposerPreparing) proposerStateMachineComponentWitness() {}
func (pp *proposerPreparing) String() string {
	return fmt.Sprintf("proposerPreparing(%d promises)", len(pp.promises))
}

// proposing: collecting accepts for the current epoch

type proposerProposing struct {
	*Proposer
	progressAt      common.Instant
	value           common.Value
	client          common.Address
	receivedAccepts int
}

func (pp *proposerProposing) init(p *Proposer) { pp.Proposer = p }

func (pp *proposerProposing) lastProgressAt() (common.Instant, bool) { return pp.progressAt, true }

func (pp *proposerProposing) currentRound() (common.Value, common.Address, bool) {
	return pp.value, pp.client, true
}

func (pp *proposerProposing) proposerStateMachineComponentWitness() {}
func (pp *proposerProposing) String() string {
	return fmt.Sprintf("proposerProposing(%d accepts)", pp.receivedAccepts)
}
