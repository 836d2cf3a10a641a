package market

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	// PriceEpsilon is the smallest move that counts as a price change.
	PriceEpsilon = 1e-9
	// HistoryLimit is how many recent prices are kept per instrument.
	HistoryLimit = 30
)

var (
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrDuplicateSymbol  = errors.New("duplicate symbol")
	ErrInvalidThreshold = errors.New("alert threshold must be >= 0")
)

// PricePoint is one entry of an instrument's short price history.
type PricePoint struct {
	At    time.Time `json:"at"`
	Price float64   `json:"price"`
}

type entry struct {
	inst    Instrument
	history []PricePoint
}

// State is the ordered, symbol-indexed set of instruments. Every mutation
// happens under one lock held for a single instrument update, so readers
// never see a torn price/threshold pair.
type State struct {
	mu    sync.RWMutex
	order []*entry
	index map[string]*entry
	now   func() time.Time
}

// NewState creates a state holding instruments in the given order.
func NewState(instruments ...Instrument) (*State, error) {
	s := &State{
		index: make(map[string]*entry, len(instruments)),
		now:   time.Now,
	}
	for _, in := range instruments {
		if err := s.Add(in); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends an instrument. Symbols are unique.
func (s *State) Add(in Instrument) error {
	if in.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrUnknownSymbol)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[in.Symbol]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, in.Symbol)
	}
	if in.Feed == "" {
		in.Feed = FeedKindFor(in.Class)
	}
	e := &entry{inst: in}
	e.record(s.now(), in.Price)
	s.order = append(s.order, e)
	s.index[in.Symbol] = e
	return nil
}

// Len returns the number of instruments.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get returns a copy of the instrument.
func (s *State) Get(symbol string) (Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.index[symbol]
	if !ok {
		return Instrument{}, false
	}
	return e.inst, true
}

// Price returns the current price of symbol.
func (s *State) Price(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.index[symbol]
	if !ok {
		return 0, false
	}
	return e.inst.Price, true
}

// Instruments returns copies of all instruments in insertion order.
func (s *State) Instruments() []Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Instrument, len(s.order))
	for i, e := range s.order {
		out[i] = e.inst
	}
	return out
}

// Symbols lists symbols matching filter, in order. A nil filter matches all.
func (s *State) Symbols(filter func(Instrument) bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.order))
	for _, e := range s.order {
		if filter == nil || filter(e.inst) {
			out = append(out, e.inst.Symbol)
		}
	}
	return out
}

// History returns the recent price points of symbol, oldest first.
func (s *State) History(symbol string) ([]PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.index[symbol]
	if !ok {
		return nil, false
	}
	out := make([]PricePoint, len(e.history))
	copy(out, e.history)
	return out, true
}

// ApplyPrice commits a fetched price under the update rule: non-positive
// prices are ignored, percent change is recomputed only on a real move from
// a positive old price, and the price is always overwritten otherwise.
func (s *State) ApplyPrice(symbol string, newPrice float64) (Instrument, bool) {
	if newPrice <= 0 || math.IsNaN(newPrice) || math.IsInf(newPrice, 0) {
		return Instrument{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[symbol]
	if !ok {
		return Instrument{}, false
	}
	old := e.inst.Price
	if old > 0 && math.Abs(newPrice-old) > PriceEpsilon {
		e.inst.PercentChange = Round2((newPrice - old) / old * 100)
	}
	e.inst.Price = newPrice
	e.inst.UpdatedAt = s.now()
	e.record(e.inst.UpdatedAt, newPrice)
	return e.inst, true
}

// Step replaces price and percent change with the result of step applied to
// the current price, as one atomic read-modify-write.
func (s *State) Step(symbol string, step func(price float64) (float64, float64)) (Instrument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[symbol]
	if !ok {
		return Instrument{}, false
	}
	price, pct := step(e.inst.Price)
	if price < 0 || math.IsNaN(price) {
		return e.inst, false
	}
	e.inst.Price = price
	e.inst.PercentChange = pct
	e.inst.UpdatedAt = s.now()
	e.record(e.inst.UpdatedAt, price)
	return e.inst, true
}

// SetAlerts arms (value > 0) or disarms (0) both thresholds of symbol.
func (s *State) SetAlerts(symbol string, below, above float64) (Instrument, error) {
	if below < 0 || above < 0 || math.IsNaN(below) || math.IsNaN(above) {
		return Instrument{}, ErrInvalidThreshold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[symbol]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	e.inst.AlertBelow = below
	e.inst.AlertAbove = above
	return e.inst, nil
}

// Update runs fn on the live instrument under the write lock. fn must not
// change Symbol and must not call back into State.
func (s *State) Update(symbol string, fn func(*Instrument)) (Instrument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[symbol]
	if !ok {
		return Instrument{}, false
	}
	sym := e.inst.Symbol
	fn(&e.inst)
	e.inst.Symbol = sym
	return e.inst, true
}

func (e *entry) record(at time.Time, price float64) {
	e.history = append(e.history, PricePoint{At: at, Price: price})
	if len(e.history) > HistoryLimit {
		e.history = e.history[len(e.history)-HistoryLimit:]
	}
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
