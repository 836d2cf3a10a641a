package adapters

import (
	"context"
	"strings"
	"sync"
)

// StaticSource serves fixed prices. It backs the stub feeds and tests.
type StaticSource struct {
	mu     sync.Mutex
	name   string
	prices map[string]float64
	fail   map[string]error
	calls  map[string]int
}

// NewStaticSource creates a source with the given id -> price table.
func NewStaticSource(name string, prices map[string]float64) *StaticSource {
	s := &StaticSource{
		name:   name,
		prices: map[string]float64{},
		fail:   map[string]error{},
		calls:  map[string]int{},
	}
	for id, p := range prices {
		s.prices[strings.ToLower(id)] = p
	}
	return s
}

func (s *StaticSource) Name() string {
	return s.name
}

// Set replaces the price for id and clears any injected failure.
func (s *StaticSource) Set(id string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.ToLower(id)
	s.prices[id] = price
	delete(s.fail, id)
}

// Fail makes every fetch of id return err until Set is called. A nil err
// injects a network error.
func (s *StaticSource) Fail(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.ToLower(id)
	if err == nil {
		err = NewNetworkError(s.name, id, "injected failure", nil)
	}
	s.fail[id] = err
}

// Calls returns how many times id was fetched.
func (s *StaticSource) Calls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[strings.ToLower(id)]
}

// FetchPrice implements QuoteSource.
func (s *StaticSource) FetchPrice(ctx context.Context, id string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, NewNetworkError(s.name, id, "cancelled", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(id)
	s.calls[key]++
	if err, ok := s.fail[key]; ok {
		return 0, err
	}
	p, ok := s.prices[key]
	if !ok {
		return 0, NewBadSymbolError(s.name, id, "unknown id")
	}
	return p, nil
}
