package paxos

import (
	"fmt"

	"github.com/go-kit/kit/log"

	"paxsim.io/paxsim"
	"paxsim.io/paxsim/common"
	"paxsim.io/paxsim/msgs"
	"paxsim.io/paxsim/status"
)

// Acceptor is the passive Paxos role: it consumes Prepare and Propose
// and answers with Promise, Accept, or (nack variant) Nack. Its two
// state cells, promised and accepted, are what the whole protocol's
// safety rests on.
type Acceptor struct {
	logger   log.Logger
	addr     common.Address
	variant  Variant
	promised *common.Epoch
	accepted *msgs.Accepted
	inbox    []msgs.Msg
}

func NewAcceptor(addr common.Address, variant Variant, logger log.Logger) *Acceptor {
	return &Acceptor{
		logger:  log.With(logger, "subsystem", "acceptor", "addr", addr),
		addr:    addr,
		variant: variant,
	}
}

func (a *Acceptor) Address() common.Address { return a.addr }

// Promised exposes the current promise for run-end auditing.
func (a *Acceptor) Promised() (common.Epoch, bool) {
	if a.promised == nil {
		return common.Epoch{}, false
	}
	return *a.promised, true
}

// Accepted exposes the accepted pair for run-end auditing.
func (a *Acceptor) Accepted() *msgs.Accepted { return a.accepted }

func (a *Acceptor) Receive(m msgs.Msg) {
	a.inbox = append(a.inbox, m)
}

func (a *Acceptor) Process(now common.Instant) []msgs.Msg {
	inbox := a.inbox
	a.inbox = nil
	var out []msgs.Msg
	for _, m := range inbox {
		out = append(out, a.processMsg(m, now)...)
	}
	return out
}

func (a *Acceptor) processMsg(m msgs.Msg, now common.Instant) []msgs.Msg {
	switch body := m.Body.(type) {
	case msgs.Prepare:
		if a.promised != nil && a.promised.GreaterThan(body.Epoch) {
			paxsim.DebugLog(a.logger, "msg", "Prepare below promise.", "prepared", body.Epoch, "promised", *a.promised)
			return a.reject(m.From, body.Epoch, now)
		}
		// The comparison above is strict: a Prepare at exactly the
		// promised epoch re-promises and re-replies, keeping the
		// protocol idempotent under duplicates from the same proposer.
		promised := body.Epoch
		a.promised = &promised
		return []msgs.Msg{{
			Header: msgs.Header{From: a.addr, To: m.From, At: now.Add(paxsim.MinTransitDelay)},
			Body:   msgs.Promise{Epoch: promised, Accepted: a.accepted},
		}}

	case msgs.Propose:
		if a.promised != nil && a.promised.GreaterThan(body.Epoch) {
			paxsim.DebugLog(a.logger, "msg", "Propose below promise.", "proposed", body.Epoch, "promised", *a.promised)
			return a.reject(m.From, body.Epoch, now)
		}
		a.accepted = &msgs.Accepted{Epoch: body.Epoch, Value: body.Value}
		if a.promised == nil || body.Epoch.GreaterThan(*a.promised) {
			// The accepted epoch must never run ahead of the promise.
			promised := body.Epoch
			a.promised = &promised
		}
		return []msgs.Msg{{
			Header: msgs.Header{From: a.addr, To: m.From, At: now.Add(paxsim.MinTransitDelay)},
			Body:   msgs.Accept{Epoch: body.Epoch},
		}}

	default:
		panic(fmt.Sprintf("Acceptor %v received impossible message: %v", a.addr, m))
	}
}

func (a *Acceptor) reject(to common.Address, declined common.Epoch, now common.Instant) []msgs.Msg {
	if a.variant == Classic {
		return nil
	}
	return []msgs.Msg{{
		Header: msgs.Header{From: a.addr, To: to, At: now.Add(paxsim.MinTransitDelay)},
		Body:   msgs.Nack{Declined: declined, Promised: *a.promised},
	}}
}

func (a *Acceptor) Status(sc *status.StatusConsumer) {
	sc.Emit(fmt.Sprintf("Acceptor %v (%v)", a.addr, a.variant))
	if a.promised == nil {
		sc.Emit("- Promised: none")
	} else {
		sc.Emit(fmt.Sprintf("- Promised: %v", *a.promised))
	}
	sc.Emit(fmt.Sprintf("- Accepted: %v", a.accepted))
	sc.Emit(fmt.Sprintf("- Inbox: %v", len(a.inbox)))
	sc.Join()
}
