package paxsim

const (
	// ProposerTimeout is the number of virtual ticks a proposer waits
	// without progress before abandoning the current round and
	// re-preparing at a higher epoch.
	ProposerTimeout = 10

	// QuiescenceWindow must exceed ProposerTimeout: an empty message
	// queue alone does not mean the run is over, as a proposer may still
	// make progress via its timeout.
	QuiescenceWindow = 100

	// MaxMsgDelay caps the random per-message transit delay.
	MaxMsgDelay = 5

	// MsgDelayRate is the rate of the exponential delay distribution.
	MsgDelayRate = 0.5

	// MinTransitDelay is the minimum number of ticks between emitting a
	// message and its earliest possible delivery.
	MinTransitDelay = 1

	// MaxSimulationInstant bounds a run against pathological
	// nontermination.
	MaxSimulationInstant = 100000
)
