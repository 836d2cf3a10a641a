package adapters

import (
	"math"
	"sync/atomic"
)

// Rate is a float64 shared between goroutines without locking. Readers may
// see a stale value, never a torn one.
type Rate struct {
	bits atomic.Uint64
}

// NewRate creates a rate holding initial.
func NewRate(initial float64) *Rate {
	r := &Rate{}
	r.bits.Store(math.Float64bits(initial))
	return r
}

// Load returns the current value.
func (r *Rate) Load() float64 {
	return math.Float64frombits(r.bits.Load())
}

// Store replaces the value if v is a positive finite number.
func (r *Rate) Store(v float64) bool {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	r.bits.Store(math.Float64bits(v))
	return true
}
