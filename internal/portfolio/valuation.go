package portfolio

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// PositionValue is a holding marked at the live price.
type PositionValue struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
	Priced   bool    `json:"priced"` // false when the symbol has no live price
}

// Valuation is a point-in-time view of the ledger.
type Valuation struct {
	Currency  string          `json:"currency"`
	Cash      float64         `json:"cash"`
	Holdings  float64         `json:"holdings"`
	Total     float64         `json:"total"`
	Positions []PositionValue `json:"positions"`
}

// Valuation marks every position at the current price.
func (l *Ledger) Valuation() Valuation {
	positions := l.Positions()
	cash := l.Cash()

	v := Valuation{Currency: l.currency, Cash: cash, Positions: make([]PositionValue, 0, len(positions))}
	holdings := decimal.Zero
	for _, p := range positions {
		pv := PositionValue{Symbol: p.Symbol, Quantity: p.Quantity}
		if price, ok := l.prices.Price(p.Symbol); ok && price > 0 {
			value := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(p.Quantity))
			pv.Price = price
			pv.Value = value.InexactFloat64()
			pv.Priced = true
			holdings = holdings.Add(value)
		}
		v.Positions = append(v.Positions, pv)
	}
	v.Holdings = holdings.InexactFloat64()
	v.Total = holdings.Add(decimal.NewFromFloat(cash)).InexactFloat64()
	return v
}

// Format renders amount in the ledger currency, e.g. "$5,200.00".
func (l *Ledger) Format(amount float64) string {
	return FormatMoney(amount, l.currency)
}

// FormatMoney renders amount in currency using its minor-unit precision.
// Unknown currency codes fall back to a plain two-decimal number.
func FormatMoney(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return decimal.NewFromFloat(amount).StringFixed(2) + " " + currency
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}
