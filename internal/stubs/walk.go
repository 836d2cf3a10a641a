package stubs

import (
	"context"
	"time"

	"github.com/Rajchodisetti/stock-tracker/internal/adapters"
)

// Walk random-walks the listed crypto and fx prices every interval so the
// live refresh tasks see movement.
func (f *Feeds) Walk(ctx context.Context, interval time.Duration, sim *adapters.Simulator, crypto, fx map[string]float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cur := make(map[string]float64, len(crypto))
	for k, v := range crypto {
		cur[k] = v
	}
	rates := make(map[string]float64, len(fx))
	for k, v := range fx {
		rates[k] = v
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for id, p := range cur {
				next, _ := sim.Step(p)
				cur[id] = next
				f.Crypto.Set(id, next)
				if id == "bitcoin" {
					f.Crypto.Set("btcusdt", next)
				}
			}
			for code, p := range rates {
				next, _ := sim.Step(p * 10000)
				rates[code] = next / 10000
				f.Fx.Set(code, rates[code])
			}
		}
	}
}
