// Package alerts evaluates one-shot price thresholds and fans the resulting
// events out to subscribers and notifiers.
package alerts

import (
	"fmt"
	"time"

	"github.com/Rajchodisetti/stock-tracker/internal/market"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// Kind is the direction of a threshold crossing.
type Kind string

const (
	Below Kind = "below"
	Above Kind = "above"
)

// Event is emitted once per armed threshold crossing.
type Event struct {
	Symbol    string    `json:"symbol"`
	Kind      Kind      `json:"kind"`
	Threshold float64   `json:"threshold"`
	Price     float64   `json:"price"`
	At        time.Time `json:"at"`
}

// Message renders the event for display.
func (e Event) Message() string {
	if e.Kind == Below {
		return fmt.Sprintf("ALERT! %s fell below %.2f (now %.2f)", e.Symbol, e.Threshold, e.Price)
	}
	return fmt.Sprintf("SUCCESS! %s rose above %.2f (now %.2f)", e.Symbol, e.Threshold, e.Price)
}

// Engine checks instruments against their thresholds.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an engine stamping events with the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Check returns an event for each armed threshold in crossed and disarms it.
// Callers pass an instrument that is locked for writing, e.g. from
// market.State.Update, so the disarm commits with the check.
func (e *Engine) Check(in *market.Instrument) []Event {
	var events []Event
	if in.AlertBelow > 0 && in.Price < in.AlertBelow {
		events = append(events, e.fire(in, Below, in.AlertBelow))
		in.AlertBelow = 0
	}
	if in.AlertAbove > 0 && in.Price > in.AlertAbove {
		events = append(events, e.fire(in, Above, in.AlertAbove))
		in.AlertAbove = 0
	}
	return events
}

func (e *Engine) fire(in *market.Instrument, kind Kind, threshold float64) Event {
	ev := Event{
		Symbol:    in.Symbol,
		Kind:      kind,
		Threshold: threshold,
		Price:     in.Price,
		At:        e.now(),
	}
	observ.AlertsFired.WithLabelValues(string(kind)).Inc()
	observ.Log("alert_fired", map[string]any{
		"symbol":    ev.Symbol,
		"kind":      string(kind),
		"threshold": threshold,
		"price":     ev.Price,
	})
	return ev
}

// CheckState runs Check for each symbol inside State.Update and returns
// every event produced, in symbol order.
func (e *Engine) CheckState(state *market.State, symbols []string) []Event {
	var events []Event
	for _, sym := range symbols {
		state.Update(sym, func(in *market.Instrument) {
			if in.Armed() {
				events = append(events, e.Check(in)...)
			}
		})
	}
	return events
}
