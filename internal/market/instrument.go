// Package market holds the live, shared view of every tracked instrument.
package market

import (
	"fmt"
	"strings"
	"time"
)

// AssetClass selects which feed chain prices an instrument.
type AssetClass string

const (
	ClassEquity AssetClass = "equity"
	ClassFx     AssetClass = "fx"
	ClassCrypto AssetClass = "crypto"
)

// ParseAssetClass accepts the config spelling of a class.
func ParseAssetClass(s string) (AssetClass, error) {
	switch AssetClass(strings.ToLower(strings.TrimSpace(s))) {
	case ClassEquity:
		return ClassEquity, nil
	case ClassFx:
		return ClassFx, nil
	case ClassCrypto:
		return ClassCrypto, nil
	}
	return "", fmt.Errorf("unknown asset class %q", s)
}

// FeedKind says where an instrument's ongoing price comes from.
type FeedKind string

const (
	FeedLive      FeedKind = "live"
	FeedSimulated FeedKind = "simulated"
)

// FeedKindFor returns the feed kind an instrument of class gets at creation.
// Equities are only quoted at startup and then random-walked.
func FeedKindFor(class AssetClass) FeedKind {
	if class == ClassEquity {
		return FeedSimulated
	}
	return FeedLive
}

// Instrument is a tracked symbol. Values returned by State are copies.
type Instrument struct {
	Symbol        string     `json:"symbol"`
	Class         AssetClass `json:"class"`
	Feed          FeedKind   `json:"feed"`
	SourceID      string     `json:"source_id"` // identifier understood by the quote source
	Price         float64    `json:"price"`
	PercentChange float64    `json:"percent_change"`
	AlertBelow    float64    `json:"alert_below"` // 0 = disarmed
	AlertAbove    float64    `json:"alert_above"` // 0 = disarmed
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewInstrument builds an instrument with its feed kind derived from class.
func NewInstrument(symbol string, class AssetClass, sourceID string, price float64) Instrument {
	if price < 0 {
		price = 0
	}
	return Instrument{
		Symbol:    strings.TrimSpace(symbol),
		Class:     class,
		Feed:      FeedKindFor(class),
		SourceID:  sourceID,
		Price:     price,
		UpdatedAt: time.Now(),
	}
}

// Armed reports whether either threshold is set.
func (in *Instrument) Armed() bool {
	return in.AlertBelow > 0 || in.AlertAbove > 0
}
