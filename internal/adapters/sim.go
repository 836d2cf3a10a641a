package adapters

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Rajchodisetti/stock-tracker/internal/market"
)

// DefaultMaxStep is the largest per-tick move of the random walk (±0.5%).
const DefaultMaxStep = 0.005

// Rand is the subset of *rand.Rand the simulator draws from.
type Rand interface {
	Float64() float64
}

// Simulator random-walks prices of instruments without a live feed.
type Simulator struct {
	mu      sync.Mutex
	random  Rand
	maxStep float64
}

// NewSimulator creates a simulator seeded from the clock.
func NewSimulator() *Simulator {
	return NewSimulatorWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSimulatorWithRand creates a simulator drawing from r.
func NewSimulatorWithRand(r Rand) *Simulator {
	return &Simulator{random: r, maxStep: DefaultMaxStep}
}

// Step moves price by a uniform delta in [-maxStep, +maxStep). Both results
// are rounded to 2 decimals; percentChange is the delta in percent.
func (s *Simulator) Step(price float64) (float64, float64) {
	s.mu.Lock()
	r := s.random.Float64()
	s.mu.Unlock()

	delta := (r - 0.5) * 2 * s.maxStep
	return market.Round2(price * (1 + delta)), market.Round2(delta * 100)
}
