package adapters

import (
	"context"
	"fmt"

	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// Chain tries its sources in order and returns the first price obtained.
// A Chain is itself a QuoteSource, so chains nest.
type Chain struct {
	name    string
	sources []QuoteSource
	health  []*SourceHealth
}

// NewChain creates a fallback chain; the first source is the primary.
func NewChain(name string, sources ...QuoteSource) *Chain {
	c := &Chain{
		name:    name,
		sources: sources,
		health:  make([]*SourceHealth, len(sources)),
	}
	for i, src := range sources {
		c.health[i] = newSourceHealth(src.Name())
	}
	return c
}

// Name implements QuoteSource.
func (c *Chain) Name() string {
	return c.name
}

// FetchPrice implements QuoteSource.
func (c *Chain) FetchPrice(ctx context.Context, id string) (float64, error) {
	if len(c.sources) == 0 {
		return 0, NewProviderError(c.name, id, "chain has no sources", nil)
	}

	var lastErr error
	for i, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return 0, NewNetworkError(c.name, id, "cancelled", err)
		}
		price, err := src.FetchPrice(ctx, id)
		if err == nil {
			c.health[i].RecordSuccess()
			if i > 0 {
				observ.Fallbacks.WithLabelValues(c.name).Inc()
				observ.Warn("quote_fallback_used", map[string]any{
					"chain":  c.name,
					"source": src.Name(),
					"id":     id,
				})
			}
			return price, nil
		}
		c.health[i].RecordError(err)
		lastErr = err
		observ.Debug("quote_source_failed", map[string]any{
			"chain":  c.name,
			"source": src.Name(),
			"id":     id,
			"type":   ErrorType(err),
			"error":  err.Error(),
		})
	}
	return 0, fmt.Errorf("%s: all %d sources failed: %w", c.name, len(c.sources), lastErr)
}

// Health returns a snapshot per source in chain order.
func (c *Chain) Health() []HealthSnapshot {
	out := make([]HealthSnapshot, len(c.health))
	for i, h := range c.health {
		out[i] = h.Snapshot()
	}
	return out
}
