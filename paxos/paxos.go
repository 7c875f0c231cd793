package paxos

import (
	"paxsim.io/paxsim/common"
	"paxsim.io/paxsim/msgs"
	"paxsim.io/paxsim/status"
)

// Variant selects the protocol flavour a node speaks. Classic rejects
// below-promise messages silently; Nack answers them with an explicit
// negative acknowledgement carrying the highest promised epoch.
type Variant uint8

const (
	Classic Variant = iota
	Nack
)

func (v Variant) String() string {
	switch v {
	case Classic:
		return "classic"
	case Nack:
		return "nack"
	default:
		return "unknown"
	}
}

// Node is the capability set every networked entity offers to the
// simulator. Receive must only enqueue: all computation happens in
// Process, which drains the inbox, advances the state machine and
// returns the messages to emit.
type Node interface {
	Address() common.Address
	Receive(m msgs.Msg)
	Process(now common.Instant) []msgs.Msg
	Status(sc *status.StatusConsumer)
}
