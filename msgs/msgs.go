package msgs

import (
	"fmt"

	"paxsim.io/paxsim/common"
)

type BodyType uint8

const (
	MSG_REQUEST BodyType = iota
	MSG_RESPONSE
	MSG_PREPARE
	MSG_PROMISE
	MSG_PROPOSE
	MSG_ACCEPT
	MSG_NACK
)

// Msg is a header plus a protocol body. Messages are wire-abstract:
// they move between inboxes as values, never as bytes.
type Msg struct {
	Header
	Body
}

func (m Msg) String() string {
	return fmt.Sprintf("%v: %v", m.Header, m.Body)
}

// Header carries routing and scheduling. At is the earliest instant at
// which the message may be delivered.
type Header struct {
	From common.Address
	To   common.Address
	At   common.Instant
}

func (h Header) String() string {
	return fmt.Sprintf("%v -> %v at %v", h.From, h.To, h.At)
}

// Body is the protocol sum type. Which() discriminates for dispatch;
// the variant structs carry the per-variant payload.
type Body interface {
	Which() BodyType
	String() string
	bodyWitness()
}

// Accepted is an (epoch, value) pair an acceptor has agreed to. The two
// fields never occur separately.
type Accepted struct {
	Epoch common.Epoch
	Value common.Value
}

func (a *Accepted) String() string {
	if a == nil {
		return "none"
	}
	return fmt.Sprintf("(%v, %q)", a.Epoch, a.Value)
}

// Request is issued by an end-user to a proposer.
type Request struct {
	Value common.Value
}

// Response is issued by a proposer back to the end-user.
type Response struct {
	Value common.Value
}

type Prepare struct {
	Epoch common.Epoch
}

// Promise is an acceptor's commitment not to accept any proposal below
// the promised epoch, reporting whatever it accepted before.
type Promise struct {
	Epoch    common.Epoch
	Accepted *Accepted
}

type Propose struct {
	Epoch common.Epoch
	Value common.Value
}

type Accept struct {
	Epoch common.Epoch
}

// Nack is the nack variant's explicit rejection of a Prepare or
// Propose: the declined epoch plus the highest epoch the rejecting
// acceptor has promised.
type Nack struct {
	Declined common.Epoch
	Promised common.Epoch
}

func (b Request) Which() BodyType  { return MSG_REQUEST }
func (b Response) Which() BodyType { return MSG_RESPONSE }
func (b Prepare) Which() BodyType  { return MSG_PREPARE }
func (b Promise) Which() BodyType  { return MSG_PROMISE }
func (b Propose) Which() BodyType  { return MSG_PROPOSE }
func (b Accept) Which() BodyType   { return MSG_ACCEPT }
func (b Nack) Which() BodyType     { return MSG_NACK }

func (b Request) String() string  { return fmt.Sprintf("request(%q)", b.Value) }
func (b Response) String() string { return fmt.Sprintf("response(%q)", b.Value) }
func (b Prepare) String() string  { return fmt.Sprintf("prepare(%v)", b.Epoch) }
func (b Promise) String() string  { return fmt.Sprintf("promise(%v, %v)", b.Epoch, b.Accepted) }
func (b Propose) String() string  { return fmt.Sprintf("propose(%v, %q)", b.Epoch, b.Value) }
func (b Accept) String() string   { return fmt.Sprintf("accept(%v)", b.Epoch) }
func (b Nack) String() string     { return fmt.Sprintf("nack(%v, %v)", b.Declined, b.Promised) }

func (b Request) bodyWitness()  {}
func (b Response) bodyWitness() {}
func (b Prepare) bodyWitness()  {}
func (b Promise) bodyWitness()  {}
func (b Propose) bodyWitness()  {}
func (b Accept) bodyWitness()   {}
func (b Nack) bodyWitness()     {}

// IsRequest extracts the value of a Request body.
func IsRequest(b Body) (common.Value, bool) {
	if req, ok := b.(Request); ok {
		return req.Value, true
	}
	return "", false
}

// IsResponse extracts the value of a Response body.
func IsResponse(b Body) (common.Value, bool) {
	if resp, ok := b.(Response); ok {
		return resp.Value, true
	}
	return "", false
}
