package adapters

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Rajchodisetti/stock-tracker/internal/market"
)

func newTestAggregator() (*Aggregator, *StaticSource, *StaticSource, *StaticSource, *StaticSource) {
	stooq := NewStaticSource("stooq", map[string]float64{"wig20": 2401.37})
	nbp := NewStaticSource("nbp", map[string]float64{"usd": 3.95, "eur": 4.31, "chf": 4.52})
	binance := NewStaticSource("binance", map[string]float64{"bitcoin": 60000})
	coincap := NewStaticSource("coincap", map[string]float64{"bitcoin": 59000})
	agg := NewAggregator(stooq, nbp, NewChain("crypto", binance, coincap), AggregatorConfig{})
	return agg, stooq, nbp, binance, coincap
}

func TestAggregatorDefaults(t *testing.T) {
	agg, _, _, _, _ := newTestAggregator()
	assert.Equal(t, 4.0, agg.USDRate().Load())
	assert.Equal(t, "usd", agg.USDCode())
}

func TestAggregatorEquity(t *testing.T) {
	agg, stooq, _, _, _ := newTestAggregator()
	ctx := context.Background()

	price, ok := agg.FetchPrice(ctx, market.ClassEquity, "wig20", 2400)
	assert.True(t, ok)
	assert.Equal(t, 2401.37, price)

	stooq.Fail("wig20", nil)
	price, ok = agg.FetchPrice(ctx, market.ClassEquity, "wig20", 2400)
	assert.False(t, ok)
	assert.Equal(t, 2400.0, price, "seed is returned when the source is unavailable")
}

func TestAggregatorFxUpdatesUSDRate(t *testing.T) {
	agg, _, _, _, _ := newTestAggregator()
	ctx := context.Background()

	price, ok := agg.FetchPrice(ctx, market.ClassFx, "eur", 0)
	assert.True(t, ok)
	assert.Equal(t, 4.31, price)
	assert.Equal(t, 4.0, agg.USDRate().Load(), "only the usd code moves the shared rate")

	price, ok = agg.FetchPrice(ctx, market.ClassFx, "USD", 0)
	assert.True(t, ok)
	assert.Equal(t, 3.95, price)
	assert.Equal(t, 3.95, agg.USDRate().Load())
}

func TestAggregatorFxFailureSignalsNoUpdate(t *testing.T) {
	agg, _, nbp, _, _ := newTestAggregator()
	ctx := context.Background()

	_, ok := agg.FetchFx(ctx, "usd")
	assert.True(t, ok)

	nbp.Fail("eur", nil)
	price, ok := agg.FetchFx(ctx, "eur")
	assert.False(t, ok)
	assert.Equal(t, NoUpdate, price)

	// crypto conversion keeps using the cached rate, never -1 or 0
	btc, ok := agg.FetchCrypto(ctx, "bitcoin")
	assert.True(t, ok)
	assert.InDelta(t, 60000*3.95, btc, 1e-6)

	nbp.Fail("usd", nil)
	_, ok = agg.FetchFx(ctx, "usd")
	assert.False(t, ok)
	assert.Equal(t, 3.95, agg.USDRate().Load())
}

func TestAggregatorCryptoChain(t *testing.T) {
	agg, _, _, binance, coincap := newTestAggregator()
	ctx := context.Background()

	price, ok := agg.FetchPrice(ctx, market.ClassCrypto, "bitcoin", 0)
	assert.True(t, ok)
	assert.InDelta(t, 60000*4.0, price, 1e-6)

	binance.Fail("bitcoin", nil)
	price, ok = agg.FetchPrice(ctx, market.ClassCrypto, "bitcoin", 0)
	assert.True(t, ok)
	assert.InDelta(t, 59000*4.0, price, 1e-6)

	coincap.Fail("bitcoin", nil)
	price, ok = agg.FetchPrice(ctx, market.ClassCrypto, "bitcoin", 0)
	assert.False(t, ok)
	assert.Equal(t, 380000.0, price, "last resort is not converted")
}

func TestAggregatorUnknownClass(t *testing.T) {
	agg, _, _, _, _ := newTestAggregator()
	price, ok := agg.FetchPrice(context.Background(), market.AssetClass("bond"), "x", 12)
	assert.False(t, ok)
	assert.Equal(t, 12.0, price)
}

func TestRate(t *testing.T) {
	r := NewRate(4.0)
	assert.False(t, r.Store(0))
	assert.False(t, r.Store(-1))
	assert.Equal(t, 4.0, r.Load())
	assert.True(t, r.Store(3.9786))
	assert.Equal(t, 3.9786, r.Load())
}

func TestRateConcurrentAccess(t *testing.T) {
	r := NewRate(1)
	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(2)
		go func(v float64) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.Store(v)
			}
		}(float64(i))
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v := r.Load()
				if v < 1 || v > 8 || v != float64(int(v)) {
					t.Errorf("torn read %v", v)
					return
				}
			}
		}()
	}
	wg.Wait()
}
