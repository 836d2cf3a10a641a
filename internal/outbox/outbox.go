// Package outbox keeps an in-memory journal of executed trades and replays
// the stored receipt when a request is retried with the same idempotency
// key inside the dedupe window.
package outbox

import (
	"sync"
	"time"

	"github.com/Rajchodisetti/stock-tracker/internal/observ"
	"github.com/Rajchodisetti/stock-tracker/internal/portfolio"
)

// Entry is one journaled trade.
type Entry struct {
	Seq            int64             `json:"seq"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Receipt        portfolio.Receipt `json:"receipt"`
	Event          time.Time         `json:"event"`
}

type Outbox struct {
	mu           sync.Mutex
	limit        int
	dedupeWindow time.Duration
	seq          int64
	entries      []Entry
	byKey        map[string]Entry
	now          func() time.Time
}

// New creates a journal keeping the last limit entries.
func New(limit int, dedupeWindow time.Duration) *Outbox {
	if limit <= 0 {
		limit = 500
	}
	return &Outbox{
		limit:        limit,
		dedupeWindow: dedupeWindow,
		byKey:        make(map[string]Entry),
		now:          time.Now,
	}
}

// Execute runs trade unless key was already journaled within the dedupe
// window, in which case the earlier entry is returned with replayed set.
// Calls are serialized so two retries with one key execute at most once.
// Failed trades are not journaled.
func (o *Outbox) Execute(key string, trade func() (portfolio.Receipt, error)) (entry Entry, replayed bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now().UTC()
	if key != "" {
		if prev, ok := o.byKey[key]; ok && now.Sub(prev.Event) <= o.dedupeWindow {
			observ.Log("trade_replayed", map[string]any{"key": key, "seq": prev.Seq})
			return prev, true, nil
		}
	}

	receipt, err := trade()
	if err != nil {
		return Entry{}, false, err
	}

	o.seq++
	entry = Entry{Seq: o.seq, IdempotencyKey: key, Receipt: receipt, Event: now}
	o.entries = append(o.entries, entry)
	if len(o.entries) > o.limit {
		o.entries = append([]Entry(nil), o.entries[len(o.entries)-o.limit:]...)
	}
	if key != "" {
		o.byKey[key] = entry
	}
	o.pruneLocked(now)
	return entry, false, nil
}

// Entries returns up to n of the most recent entries, oldest first. n <= 0
// returns everything retained.
func (o *Outbox) Entries(n int) []Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n <= 0 || n > len(o.entries) {
		n = len(o.entries)
	}
	out := make([]Entry, n)
	copy(out, o.entries[len(o.entries)-n:])
	return out
}

func (o *Outbox) pruneLocked(now time.Time) {
	for k, e := range o.byKey {
		if now.Sub(e.Event) > o.dedupeWindow {
			delete(o.byKey, k)
		}
	}
}
