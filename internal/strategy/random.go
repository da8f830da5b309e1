package strategy

import (
	"fmt"
	"math/rand"

	"cryptotrader/internal/model"
)

// Random is a test-double strategy that samples a uniform integer in
// [0,100): below the lower bound buys, above the upper bound sells.
// Used for harness and connectivity testing only.
type Random struct {
	lower int
	upper int
	rng   *rand.Rand
}

// NewRandom creates a random strategy with the given bounds.
func NewRandom(lower, upper int) *Random {
	return &Random{
		lower: lower,
		upper: upper,
		rng:   rand.New(rand.NewSource(rand.Int63())),
	}
}

// Seed reseeds the internal generator for reproducible test runs.
func (s *Random) Seed(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
}

func (s *Random) Name() string {
	return fmt.Sprintf("Random Strategy (upper=%d, lower=%d)", s.upper, s.lower)
}

func (s *Random) Lookback() int {
	return lookbackMargin
}

func (s *Random) Signal(bars []model.Bar) Signal {
	n := s.rng.Intn(100)
	if n < s.lower {
		return SignalBuy
	}
	if n > s.upper {
		return SignalSell
	}
	return SignalNone
}
