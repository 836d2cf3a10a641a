// Package monitor runs the periodic tasks that keep market.State current:
// a fast crypto refresh, a slow fx refresh and the simulation tick.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Rajchodisetti/stock-tracker/internal/alerts"
	"github.com/Rajchodisetti/stock-tracker/internal/market"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// PriceFeed is the aggregator surface the monitor needs.
type PriceFeed interface {
	FetchPrice(ctx context.Context, class market.AssetClass, id string, seed float64) (float64, bool)
}

// Stepper perturbs a simulated price.
type Stepper interface {
	Step(price float64) (float64, float64)
}

// Publisher receives alert events after the updates that caused them are
// committed.
type Publisher interface {
	Publish(events ...alerts.Event)
}

// Config holds task cadences in milliseconds.
type Config struct {
	CryptoIntervalMs int    `yaml:"crypto_interval_ms"`
	CryptoDelayMs    int    `yaml:"crypto_delay_ms"`
	FxIntervalMs     int    `yaml:"fx_interval_ms"`
	FxDelayMs        int    `yaml:"fx_delay_ms"`
	SimIntervalMs    int    `yaml:"sim_interval_ms"`
	SimDelayMs       int    `yaml:"sim_delay_ms"`
	FetchTimeoutMs   int    `yaml:"fetch_timeout_ms"`
	SeedWorkers      int    `yaml:"seed_workers"`
	USDCode          string `yaml:"usd_code"`
}

// WithDefaults fills zero fields: crypto every 5s after 2s, fx every 60s
// after 5s, simulation every 1s starting immediately.
func (c Config) WithDefaults() Config {
	if c.CryptoIntervalMs <= 0 {
		c.CryptoIntervalMs = 5000
	}
	if c.CryptoDelayMs <= 0 {
		c.CryptoDelayMs = 2000
	}
	if c.FxIntervalMs <= 0 {
		c.FxIntervalMs = 60000
	}
	if c.FxDelayMs <= 0 {
		c.FxDelayMs = 5000
	}
	if c.SimIntervalMs <= 0 {
		c.SimIntervalMs = 1000
	}
	if c.SimDelayMs < 0 {
		c.SimDelayMs = 0
	}
	if c.FetchTimeoutMs <= 0 {
		c.FetchTimeoutMs = 8000
	}
	if c.SeedWorkers <= 0 {
		c.SeedWorkers = 4
	}
	if c.USDCode == "" {
		c.USDCode = "usd"
	}
	return c
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Monitor owns every background write to a market.State.
type Monitor struct {
	cfg    Config
	state  *market.State
	feed   PriceFeed
	sim    Stepper
	engine *alerts.Engine
	bus    Publisher
}

// New creates a monitor. bus may be nil when nobody listens for alerts.
func New(cfg Config, state *market.State, feed PriceFeed, sim Stepper, engine *alerts.Engine, bus Publisher) *Monitor {
	if engine == nil {
		engine = alerts.NewEngine()
	}
	return &Monitor{
		cfg:    cfg.WithDefaults(),
		state:  state,
		feed:   feed,
		sim:    sim,
		engine: engine,
		bus:    bus,
	}
}

// State returns the monitored state.
func (m *Monitor) State() *market.State {
	return m.state
}

// Run starts the three periodic tasks and returns when ctx is cancelled.
// In-flight fetches are cancelled through ctx and not waited for.
func (m *Monitor) Run(ctx context.Context) error {
	observ.Log("monitor_start", map[string]any{
		"instruments":        m.state.Len(),
		"crypto_interval_ms": m.cfg.CryptoIntervalMs,
		"fx_interval_ms":     m.cfg.FxIntervalMs,
		"sim_interval_ms":    m.cfg.SimIntervalMs,
	})

	go m.schedule(ctx, "crypto", ms(m.cfg.CryptoDelayMs), ms(m.cfg.CryptoIntervalMs), m.RefreshCrypto)
	go m.schedule(ctx, "fx", ms(m.cfg.FxDelayMs), ms(m.cfg.FxIntervalMs), m.RefreshFx)
	go m.schedule(ctx, "sim", ms(m.cfg.SimDelayMs), ms(m.cfg.SimIntervalMs), func(context.Context) int {
		return m.SimTick()
	})

	<-ctx.Done()
	observ.Log("monitor_stop", map[string]any{"reason": ctx.Err().Error()})
	return nil
}

// schedule runs task after delay and then at a fixed rate. A tick that
// arrives while task is still running is dropped.
func (m *Monitor) schedule(ctx context.Context, name string, delay, every time.Duration, task func(context.Context) int) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		m.runOnce(ctx, name, task)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOnce isolates one iteration so a panic cannot end the schedule.
func (m *Monitor) runOnce(ctx context.Context, name string, task func(context.Context) int) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			observ.TaskRuns.WithLabelValues(name, "panic").Inc()
			observ.Warn("task_panic", map[string]any{
				"task":  name,
				"panic": fmt.Sprint(r),
			})
		}
	}()

	updated := task(ctx)
	observ.TaskRuns.WithLabelValues(name, "ok").Inc()
	observ.Debug("task_done", map[string]any{
		"task":       name,
		"updated":    updated,
		"latency_ms": time.Since(start).Milliseconds(),
	})
}

func isLive(class market.AssetClass) func(market.Instrument) bool {
	return func(in market.Instrument) bool {
		return in.Class == class && in.Feed == market.FeedLive
	}
}

// RefreshCrypto fetches every live crypto instrument and applies any
// positive value, including the aggregator's last resort after a double
// outage.
func (m *Monitor) RefreshCrypto(ctx context.Context) int {
	return m.refresh(ctx, "crypto", market.ClassCrypto, m.state.Symbols(isLive(market.ClassCrypto)))
}

// RefreshFx fetches every live fx instrument, USD first so the shared rate
// moves before the others. Pairs signalling no update keep their price.
func (m *Monitor) RefreshFx(ctx context.Context) int {
	symbols := m.state.Symbols(isLive(market.ClassFx))
	ordered := make([]string, 0, len(symbols))
	var rest []string
	for _, sym := range symbols {
		in, _ := m.state.Get(sym)
		if strings.EqualFold(in.SourceID, m.cfg.USDCode) {
			ordered = append(ordered, sym)
		} else {
			rest = append(rest, sym)
		}
	}
	return m.refresh(ctx, "fx", market.ClassFx, append(ordered, rest...))
}

func (m *Monitor) refresh(ctx context.Context, task string, class market.AssetClass, symbols []string) int {
	var updated []string
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		in, ok := m.state.Get(sym)
		if !ok {
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, ms(m.cfg.FetchTimeoutMs))
		price, live := m.feed.FetchPrice(fetchCtx, class, in.SourceID, in.Price)
		cancel()

		// fx failures come back as NoUpdate; crypto applies any positive
		// value, the last-resort constant included
		if price <= 0 {
			observ.Debug("price_skipped", map[string]any{"task": task, "symbol": sym, "value": price})
			continue
		}
		if !live {
			observ.Warn("fallback_price_applied", map[string]any{"task": task, "symbol": sym, "value": price})
		}
		if _, ok := m.state.ApplyPrice(sym, price); ok {
			updated = append(updated, sym)
		}
	}
	m.commit(task, updated)
	return len(updated)
}

// SimTick random-walks every simulated instrument.
func (m *Monitor) SimTick() int {
	symbols := m.state.Symbols(func(in market.Instrument) bool {
		return in.Feed == market.FeedSimulated
	})
	updated := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if _, ok := m.state.Step(sym, m.sim.Step); ok {
			updated = append(updated, sym)
		}
	}
	m.commit("sim", updated)

	// every armed instrument is checked each tick so a live threshold that
	// is already crossed fires even while its feed is failing
	m.publish(m.engine.CheckState(m.state, m.state.Symbols(func(in market.Instrument) bool {
		return in.Armed()
	})))
	return len(updated)
}

// commit runs once all of a tick's updates are applied: it counts them and
// checks alerts for exactly those instruments.
func (m *Monitor) commit(task string, updated []string) {
	if len(updated) == 0 {
		return
	}
	observ.PriceUpdates.WithLabelValues(task).Add(float64(len(updated)))
	m.publish(m.engine.CheckState(m.state, updated))
}

func (m *Monitor) publish(events []alerts.Event) {
	if len(events) > 0 && m.bus != nil {
		m.bus.Publish(events...)
	}
}
