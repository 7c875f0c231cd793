package common

import (
	"fmt"
)

// Address names a networked logical entity, e.g. a proposer or an
// acceptor. Addresses are virtual: they never resolve to a socket.
type Address string

func (a Address) String() string { return string(a) }

// Value is an opaque client proposal. String-backed so equality and
// ordering come for free.
type Value string

func (v Value) String() string { return string(v) }

// Instant is a point in monotonic virtual time.
type Instant uint64

func (i Instant) Add(rhs uint64) Instant { return i + Instant(rhs) }

func (i Instant) AddInstant(rhs Instant) Instant { return i + rhs }

// Sub panics on underflow: in a valid run no node ever observes a
// progress timestamp from its own future.
func (i Instant) Sub(rhs Instant) Instant {
	if rhs > i {
		panic(fmt.Sprintf("Instant underflow: %v - %v", i, rhs))
	}
	return i - rhs
}

func (i Instant) String() string { return fmt.Sprintf("%d", uint64(i)) }

// Epoch is a Paxos ballot identifier: an increasing counter paired with
// a proposer-specific identifier partitioning the global epoch set
// among proposers. Ordering is lexicographic on (Counter, Identifier),
// so epochs form a total order with no ties across proposers.
type Epoch struct {
	Counter    uint32
	Identifier uint32
}

func NewEpoch(counter, identifier uint32) Epoch {
	return Epoch{Counter: counter, Identifier: identifier}
}

func (e Epoch) Equal(rhs Epoch) bool {
	return e.Counter == rhs.Counter && e.Identifier == rhs.Identifier
}

func (e Epoch) GreaterThan(rhs Epoch) bool {
	if e.Counter != rhs.Counter {
		return e.Counter > rhs.Counter
	}
	return e.Identifier > rhs.Identifier
}

func (e Epoch) LessThan(rhs Epoch) bool {
	return rhs.GreaterThan(e)
}

// Next is the successor epoch owned by the same proposer.
func (e Epoch) Next() Epoch {
	return Epoch{Counter: e.Counter + 1, Identifier: e.Identifier}
}

func (e Epoch) String() string {
	return fmt.Sprintf("%d-%d", e.Counter, e.Identifier)
}
