package adapters

import (
	"context"
	"strings"

	"github.com/Rajchodisetti/stock-tracker/internal/market"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// NoUpdate is what an Fx fetch returns when there is nothing to apply.
const NoUpdate = -1.0

// AggregatorConfig holds the constants the aggregator falls back on.
type AggregatorConfig struct {
	DefaultUSDRate   float64 `yaml:"default_usd_rate"`
	CryptoLastResort float64 `yaml:"crypto_last_resort"` // already in local currency
	USDCode          string  `yaml:"usd_code"`
}

func (c AggregatorConfig) withDefaults() AggregatorConfig {
	if c.DefaultUSDRate <= 0 {
		c.DefaultUSDRate = 4.0
	}
	if c.CryptoLastResort <= 0 {
		c.CryptoLastResort = 380000
	}
	if c.USDCode == "" {
		c.USDCode = "usd"
	}
	c.USDCode = strings.ToLower(c.USDCode)
	return c
}

// Aggregator is the single "best available price" entry point per asset
// class. It owns the process-wide USD rate used to convert crypto prices.
type Aggregator struct {
	equity QuoteSource
	fx     QuoteSource
	crypto QuoteSource
	usd    *Rate
	config AggregatorConfig
}

// NewAggregator wires one source (or Chain) per asset class.
func NewAggregator(equity, fx, crypto QuoteSource, config AggregatorConfig) *Aggregator {
	config = config.withDefaults()
	observ.USDRate.Set(config.DefaultUSDRate)
	return &Aggregator{
		equity: equity,
		fx:     fx,
		crypto: crypto,
		usd:    NewRate(config.DefaultUSDRate),
		config: config,
	}
}

// USDRate exposes the shared rate handle.
func (a *Aggregator) USDRate() *Rate {
	return a.usd
}

// USDCode is the currency code whose Fx fetch updates the shared rate.
func (a *Aggregator) USDCode() string {
	return a.config.USDCode
}

// FetchPrice dispatches on class. ok is false whenever the returned value is
// not a live price: a seed, the crypto last resort, or NoUpdate.
func (a *Aggregator) FetchPrice(ctx context.Context, class market.AssetClass, id string, seed float64) (float64, bool) {
	switch class {
	case market.ClassEquity:
		return a.FetchEquity(ctx, id, seed)
	case market.ClassFx:
		return a.FetchFx(ctx, id)
	case market.ClassCrypto:
		return a.FetchCrypto(ctx, id)
	}
	observ.Warn("unknown_asset_class", map[string]any{"class": string(class), "id": id})
	return seed, false
}

// FetchEquity returns the quoted price or seed when the source is unavailable.
func (a *Aggregator) FetchEquity(ctx context.Context, ticker string, seed float64) (float64, bool) {
	price, err := a.equity.FetchPrice(ctx, ticker)
	if err != nil {
		observ.Warn("equity_seed_used", map[string]any{
			"id":    ticker,
			"seed":  seed,
			"type":  ErrorType(err),
			"error": err.Error(),
		})
		return seed, false
	}
	return price, true
}

// FetchFx returns the rate for a currency code or NoUpdate. A successful
// fetch of the USD code also refreshes the shared rate.
func (a *Aggregator) FetchFx(ctx context.Context, code string) (float64, bool) {
	price, err := a.fx.FetchPrice(ctx, code)
	if err != nil {
		observ.Warn("fx_no_update", map[string]any{
			"id":    code,
			"type":  ErrorType(err),
			"error": err.Error(),
		})
		return NoUpdate, false
	}
	if strings.EqualFold(code, a.config.USDCode) && a.usd.Store(price) {
		observ.USDRate.Set(price)
	}
	return price, true
}

// FetchCrypto returns the USD quote converted at the current USD rate, or
// the last-resort constant when every crypto source failed.
func (a *Aggregator) FetchCrypto(ctx context.Context, id string) (float64, bool) {
	priceUSD, err := a.crypto.FetchPrice(ctx, id)
	if err != nil {
		observ.Fallbacks.WithLabelValues("crypto_last_resort").Inc()
		observ.Warn("crypto_last_resort_used", map[string]any{
			"id":    id,
			"value": a.config.CryptoLastResort,
			"error": err.Error(),
		})
		return a.config.CryptoLastResort, false
	}
	return priceUSD * a.usd.Load(), true
}
