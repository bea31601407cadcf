package game

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// Rand is the randomness behind every draw the Outcome Generator makes.
type Rand interface {
	// Intn returns a uniform integer in [0, n).
	Intn(n int) int
}

type cryptoRand struct{}

// NewCryptoRand returns the production source backed by crypto/rand.
func NewCryptoRand() Rand {
	return cryptoRand{}
}

func (cryptoRand) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand never fails on supported platforms
		return 0
	}
	return int(v.Int64())
}

type seededRand struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededRand returns a deterministic source for replays and tests.
func NewSeededRand(seed int64) Rand {
	return &seededRand{rng: mrand.New(mrand.NewPCG(uint64(seed), 0))}
}

func (s *seededRand) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// WeightedPercent returns true with probability percent/100.
func WeightedPercent(r Rand, percent int) bool {
	return r.Intn(100) < percent
}

// RollDice rolls count uniform d6.
func RollDice(r Rand, count int) []int {
	dice := make([]int, count)
	for i := range dice {
		dice[i] = r.Intn(6) + 1
	}
	return dice
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
