package engine

import (
	"math/rand"
	"sync"
)

// Dice is the randomness the engine draws on. *RNG implements it; tests
// substitute scripted sequences.
type Dice interface {
	// Roll returns an integer in [1, sides].
	Roll(sides int) int
	// Float returns a value in [0, 1).
	Float() float64
	// Choice returns an index in [0, n).
	Choice(n int) int
}

// RNG is a seeded math/rand source shared by turns and ticks. It is safe
// for concurrent use.
type RNG struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRNG creates a new deterministic RNG from a seed.
func NewRNG(seed int64) *RNG {
	return &RNG{src: rand.New(rand.NewSource(seed))}
}

// Roll returns a random integer in [1, sides]. sides below 1 is treated as 1.
func (r *RNG) Roll(sides int) int {
	if sides < 1 {
		sides = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(sides) + 1
}

// Float returns a random value in [0, 1).
func (r *RNG) Float() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

// Choice returns a random index in [0, n). n below 1 yields 0.
func (r *RNG) Choice(n int) int {
	if n <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}
