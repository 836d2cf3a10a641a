package monitor

import (
	"context"
	"strings"
	"sync"

	"github.com/Rajchodisetti/stock-tracker/internal/market"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// Listing describes one tracked instrument before it has a price.
type Listing struct {
	Symbol   string
	Class    market.AssetClass
	SourceID string
	Seed     float64 // used when no live price is available at startup
}

// Bootstrap prices every listing and returns a State in listing order.
// The USD fx listing is fetched first so crypto conversion sees a fresh
// rate; the rest are fetched by cfg.SeedWorkers workers. An fx listing
// whose fetch fails starts at its seed.
func Bootstrap(ctx context.Context, feed PriceFeed, listings []Listing, cfg Config) (*market.State, error) {
	cfg = cfg.WithDefaults()
	prices := make([]float64, len(listings))
	sources := make([]string, len(listings))

	fetch := func(i int) {
		l := listings[i]
		fetchCtx, cancel := context.WithTimeout(ctx, ms(cfg.FetchTimeoutMs))
		defer cancel()

		price, live := feed.FetchPrice(fetchCtx, l.Class, l.SourceID, l.Seed)
		switch {
		case live && price > 0:
			sources[i] = "live"
		case l.Class == market.ClassFx || price <= 0:
			price = l.Seed
			sources[i] = "seed"
		default:
			sources[i] = "fallback"
		}
		prices[i] = price
	}

	var pending []int
	for i, l := range listings {
		if l.Class == market.ClassFx && strings.EqualFold(l.SourceID, cfg.USDCode) {
			fetch(i)
			continue
		}
		pending = append(pending, i)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.SeedWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fetch(i)
			}
		}()
	}
	for _, i := range pending {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	instruments := make([]market.Instrument, len(listings))
	for i, l := range listings {
		instruments[i] = market.NewInstrument(l.Symbol, l.Class, l.SourceID, prices[i])
		observ.Debug("instrument_seeded", map[string]any{
			"symbol": l.Symbol,
			"class":  string(l.Class),
			"price":  prices[i],
			"from":   sources[i],
		})
	}

	state, err := market.NewState(instruments...)
	if err != nil {
		return nil, err
	}
	observ.Log("bootstrap_complete", map[string]any{"instruments": state.Len()})
	return state, nil
}
