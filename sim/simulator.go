package sim

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"paxsim.io/paxsim"
	"paxsim.io/paxsim/common"
	"paxsim.io/paxsim/msgs"
	"paxsim.io/paxsim/paxos"
	"paxsim.io/paxsim/stats"
	"paxsim.io/paxsim/status"
)

// Simulator owns the virtual clock, the global time-ordered message
// queue, the node populations and the recorded traffic of one
// simulation run. A run is single-threaded and cooperative: each tick
// delivers due messages, lets every node process in a fixed order, and
// queues the emissions, optionally perturbed by a random delay.
//
// Proposers and acceptors are iterated in insertion order. Replacing
// the slices with maps would trade reproducibility for nothing:
// unordered iteration is a correctness bug here.
type Simulator struct {
	logger  log.Logger
	logBuf  *bytes.Buffer
	variant paxos.Variant
	delay   *paxsim.ExpDelayEngine

	now common.Instant

	proposers       []*paxos.Proposer
	acceptors       []*paxos.Acceptor
	proposersByAddr map[common.Address]*paxos.Proposer
	acceptorsByAddr map[common.Address]*paxos.Acceptor

	inbox     []msgs.Msg
	requests  []msgs.Msg
	responses []msgs.Msg
	delivered []msgs.Msg

	lastProgressAt common.Instant
	capReached     bool

	metrics *stats.SimulationMetrics
}

// NewSimulator creates an empty simulation. Populate it with
// AddProposer, AddAcceptor and AddRequest before Run; nodes are never
// created or destroyed mid-run. A nil delay engine means messages
// arrive after the minimum transit delay only.
func NewSimulator(variant paxos.Variant, delay *paxsim.ExpDelayEngine) *Simulator {
	logBuf := new(bytes.Buffer)
	return &Simulator{
		logger:          log.NewLogfmtLogger(logBuf),
		logBuf:          logBuf,
		variant:         variant,
		delay:           delay,
		proposersByAddr: make(map[common.Address]*paxos.Proposer),
		acceptorsByAddr: make(map[common.Address]*paxos.Acceptor),
	}
}

// Logger returns the run-log logger. Nodes constructed for this
// simulation should log through it so their trace lands in the
// failure diagnostics.
func (s *Simulator) Logger() log.Logger { return s.logger }

func (s *Simulator) SetMetrics(metrics *stats.SimulationMetrics) {
	s.metrics = metrics
}

func (s *Simulator) AddProposer(p *paxos.Proposer) {
	if _, found := s.proposersByAddr[p.Address()]; found {
		panic(fmt.Sprintf("Simulator: proposer %v already exists!", p.Address()))
	}
	s.proposers = append(s.proposers, p)
	s.proposersByAddr[p.Address()] = p
}

func (s *Simulator) AddAcceptor(a *paxos.Acceptor) {
	if _, found := s.acceptorsByAddr[a.Address()]; found {
		panic(fmt.Sprintf("Simulator: acceptor %v already exists!", a.Address()))
	}
	s.acceptors = append(s.acceptors, a)
	s.acceptorsByAddr[a.Address()] = a
}

// AddRequest pre-loads a client request; it is delivered once the
// clock reaches its header instant.
func (s *Simulator) AddRequest(m msgs.Msg) {
	if _, ok := msgs.IsRequest(m.Body); !ok {
		panic(fmt.Sprintf("Simulator: preloaded message is not a request: %v", m))
	}
	s.requests = append(s.requests, m)
	s.inbox = append(s.inbox, m)
}

func (s *Simulator) Now() common.Instant          { return s.now }
func (s *Simulator) Requests() []msgs.Msg         { return s.requests }
func (s *Simulator) Responses() []msgs.Msg        { return s.responses }
func (s *Simulator) CapReached() bool             { return s.capReached }
func (s *Simulator) Proposers() []*paxos.Proposer { return s.proposers }
func (s *Simulator) Acceptors() []*paxos.Acceptor { return s.acceptors }

// Delivered is the trace of every message handed to a destination,
// in delivery order.
func (s *Simulator) Delivered() []msgs.Msg { return s.delivered }

// Log returns the retained run log.
func (s *Simulator) Log() string { return s.logBuf.String() }

// Run drives the simulation to quiescence: it returns once no messages
// are in flight and no node has emitted for longer than the quiescence
// window, or once the safety cap on the clock is hit. Run itself never
// fails; EnsureCorrectness judges the outcome.
func (s *Simulator) Run() {
	s.logger.Log("msg", "New simulation.", "variant", s.variant,
		"proposers", len(s.proposers), "acceptors", len(s.acceptors),
		"initialInbox", len(s.inbox))

	for {
		s.tick()

		// An empty inbox alone is not the end: a proposer may still
		// make progress through its timeout. Wait out the window.
		if len(s.inbox) == 0 && s.now.Sub(s.lastProgressAt) > paxsim.QuiescenceWindow {
			return
		}

		if s.now > paxsim.MaxSimulationInstant {
			s.capReached = true
			s.logger.Log("msg", "Safety cap reached.", "now", s.now)
			return
		}
	}
}

func (s *Simulator) tick() {
	s.now = s.now.Add(1)
	if s.metrics != nil {
		s.metrics.Ticks.Inc()
	}

	// Stable sort: messages due at the same instant keep insertion
	// order, which the delivery guarantees depend on.
	sort.SliceStable(s.inbox, func(i, j int) bool {
		return s.inbox[i].At < s.inbox[j].At
	})
	s.dispatchMsgs()

	var newMsgs []msgs.Msg
	for _, p := range s.proposers {
		newMsgs = append(newMsgs, p.Process(s.now)...)
	}
	for _, a := range s.acceptors {
		newMsgs = append(newMsgs, a.Process(s.now)...)
	}

	// Any emission counts as overall progress.
	if len(newMsgs) > 0 {
		s.lastProgressAt = s.now
	}

	if s.delay != nil {
		for idx := range newMsgs {
			delay := s.delay.Sample()
			if s.metrics != nil {
				s.metrics.MsgDelay.Observe(float64(delay))
			}
			newMsgs[idx].At = newMsgs[idx].At.Add(delay)
		}
	}

	s.inbox = append(s.inbox, newMsgs...)
	if s.metrics != nil {
		s.metrics.InFlight.Set(float64(len(s.inbox)))
	}
}

func (s *Simulator) dispatchMsgs() {
	for len(s.inbox) > 0 && s.inbox[0].At <= s.now {
		m := s.inbox[0]
		s.inbox = s.inbox[1:]
		s.logger.Log("tick", s.now, "dispatch", m)
		s.delivered = append(s.delivered, m)
		if s.metrics != nil {
			s.metrics.Dispatched.WithLabelValues(bodyLabel(m.Which())).Inc()
		}
		s.dispatchMsg(m)
	}
}

func (s *Simulator) dispatchMsg(m msgs.Msg) {
	switch m.Which() {
	case msgs.MSG_REQUEST, msgs.MSG_PROMISE, msgs.MSG_ACCEPT, msgs.MSG_NACK:
		s.dispatchToProposer(m)
	case msgs.MSG_PREPARE, msgs.MSG_PROPOSE:
		s.dispatchToAcceptor(m)
	case msgs.MSG_RESPONSE:
		s.responses = append(s.responses, m)
		if s.metrics != nil {
			s.metrics.Responses.Inc()
		}
	default:
		panic(fmt.Sprintf("Simulator: no dispatch rule for %v", m))
	}
}

func (s *Simulator) dispatchToProposer(m msgs.Msg) {
	p, found := s.proposersByAddr[m.To]
	if !found {
		panic(fmt.Sprintf("Simulator: no proposer %v for %v", m.To, m))
	}
	p.Receive(m)
}

func (s *Simulator) dispatchToAcceptor(m msgs.Msg) {
	a, found := s.acceptorsByAddr[m.To]
	if !found {
		panic(fmt.Sprintf("Simulator: no acceptor %v for %v", m.To, m))
	}
	a.Receive(m)
}

func bodyLabel(t msgs.BodyType) string {
	switch t {
	case msgs.MSG_REQUEST:
		return "request"
	case msgs.MSG_RESPONSE:
		return "response"
	case msgs.MSG_PREPARE:
		return "prepare"
	case msgs.MSG_PROMISE:
		return "promise"
	case msgs.MSG_PROPOSE:
		return "propose"
	case msgs.MSG_ACCEPT:
		return "accept"
	case msgs.MSG_NACK:
		return "nack"
	default:
		return "unknown"
	}
}

// EnsureCorrectness checks the completed run against the consensus
// guarantees: every request answered, all responses agree on one
// value, and that value was initially proposed. On failure the error
// carries the full run log and the final status tree.
func (s *Simulator) EnsureCorrectness() error {
	if err := s.checkCorrectness(); err != nil {
		sc := status.NewStatusConsumer()
		s.Status(sc)
		return errors.Wrapf(err, "simulation incorrect (variant %v, now %v)\n--- status ---\n%s--- log ---\n%s",
			s.variant, s.now, sc, s.Log())
	}
	return nil
}

func (s *Simulator) checkCorrectness() error {
	if s.capReached {
		return errors.Errorf("run hit the safety cap at %v without quiescing", s.now)
	}

	if len(s.responses) != len(s.requests) {
		return errors.Errorf("expected %d responses, got %d responses",
			len(s.requests), len(s.responses))
	}

	finalValues := make(map[common.Value]paxsim.EmptyStruct)
	for _, r := range s.responses {
		v, ok := msgs.IsResponse(r.Body)
		if !ok {
			panic(fmt.Sprintf("Simulator: non-response in responses: %v", r))
		}
		finalValues[v] = paxsim.EmptyStructVal
	}

	if len(finalValues) > 1 {
		return errors.Errorf("got more than one final result: %v", s.responses)
	}

	if len(s.requests) == 0 {
		return nil
	}

	var finalValue common.Value
	for v := range finalValues {
		finalValue = v
	}

	initiallyProposed := false
	for _, req := range s.requests {
		v, ok := msgs.IsRequest(req.Body)
		if !ok {
			panic(fmt.Sprintf("Simulator: non-request in requests: %v", req))
		}
		if v == finalValue {
			initiallyProposed = true
			break
		}
	}
	if !initiallyProposed {
		return errors.Errorf("decided value %q is not among the initially proposed values", finalValue)
	}

	// Acceptor discipline: an accepted epoch never runs ahead of the
	// promise.
	for _, a := range s.acceptors {
		accepted := a.Accepted()
		if accepted == nil {
			continue
		}
		promised, ok := a.Promised()
		if !ok || accepted.Epoch.GreaterThan(promised) {
			return errors.Errorf("acceptor %v accepted %v above its promise", a.Address(), accepted)
		}
	}

	return nil
}

func (s *Simulator) Status(sc *status.StatusConsumer) {
	sc.Emit(fmt.Sprintf("Simulation (%v)", s.variant))
	sc.Emit(fmt.Sprintf("- Now: %v", s.now))
	sc.Emit(fmt.Sprintf("- Last progress: %v", s.lastProgressAt))
	sc.Emit(fmt.Sprintf("- In flight: %v", len(s.inbox)))
	sc.Emit(fmt.Sprintf("- Requests: %v, responses: %v", len(s.requests), len(s.responses)))
	for _, p := range s.proposers {
		p.Status(sc.Fork())
	}
	for _, a := range s.acceptors {
		a.Status(sc.Fork())
	}
	sc.Join()
}
