package simulator

import (
	"math/rand/v2"
	"time"
)

// Random is the source for every probabilistic decision the simulator makes.
// *rand.Rand from math/rand/v2 satisfies it.
type Random interface {
	Float64() float64
	IntN(n int) int
}

func NewRandom(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func chance(random Random, probability float64) bool {
	return random.Float64() < probability
}

// minutesIn samples whole minutes uniformly from [Min, Max)
func minutesIn(random Random, r DurationRange) time.Duration {
	span := int((r.Max - r.Min) / time.Minute)
	if span <= 0 {
		return r.Min
	}
	return r.Min + time.Duration(random.IntN(span))*time.Minute
}
