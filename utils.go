package paxsim

import (
	"math/rand"

	"github.com/go-kit/kit/log"
)

type DebugLogFunc func(log.Logger, ...interface{})

var DebugLog = DebugLogFunc(func(log.Logger, ...interface{}) {})

type EmptyStruct struct{}

var EmptyStructVal = EmptyStruct{}

func (es EmptyStruct) String() string { return "" }

// ExpDelayEngine samples per-message transit delays from a truncated
// exponential distribution. The rng must be seeded by the caller:
// reproducibility of a simulation depends on it.
type ExpDelayEngine struct {
	rng  *rand.Rand
	rate float64
	max  uint64
}

func NewExpDelayEngine(rng *rand.Rand, rate float64, max uint64) *ExpDelayEngine {
	if rate <= 0 {
		return nil
	}
	return &ExpDelayEngine{
		rng:  rng,
		rate: rate,
		max:  max,
	}
}

func (ede *ExpDelayEngine) Sample() uint64 {
	delay := uint64(ede.rng.ExpFloat64() / ede.rate)
	if delay > ede.max {
		return ede.max
	}
	return delay
}
