// Package portfolio holds the cash ledger and positions a user trades
// against live market prices.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

const (
	// DustEpsilon is the quantity below which a holding counts as closed.
	DustEpsilon = 1e-4
	// DefaultCash is the starting balance when none is seeded.
	DefaultCash     = 10000.0
	DefaultCurrency = "PLN"
)

var dust = decimal.NewFromFloat(DustEpsilon)

// PriceReader returns the current price of a symbol.
type PriceReader interface {
	Price(symbol string) (float64, bool)
}

// Mode selects how a trade amount is interpreted.
type Mode string

const (
	Quantity Mode = "quantity"
	Notional Mode = "notional"
)

// ParseMode accepts "quantity"/"qty"/"units" and "notional"/"value"/"amount".
// An empty string means Quantity.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quantity", "qty", "units", "":
		return Quantity, nil
	case "notional", "value", "amount":
		return Notional, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
}

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Receipt describes an executed trade.
type Receipt struct {
	Side      Side      `json:"side"`
	Symbol    string    `json:"symbol"`
	Mode      Mode      `json:"mode"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"` // cash debited or credited
	CashAfter float64   `json:"cash_after"`
	Closed    bool      `json:"closed,omitempty"` // position removed by this sell
	At        time.Time `json:"at"`
}

// Position is a held quantity of one symbol.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
}

// Ledger owns cash and positions. Buy and Sell are its only writers and are
// serialized; prices are read at the instant of the trade and not locked
// against concurrent market updates.
type Ledger struct {
	mu        sync.Mutex
	prices    PriceReader
	currency  string
	cash      decimal.Decimal
	positions map[string]decimal.Decimal
	now       func() time.Time
}

// NewLedger creates a ledger with startingCash (DefaultCash when <= 0).
func NewLedger(prices PriceReader, startingCash float64, currency string) *Ledger {
	if startingCash <= 0 || math.IsNaN(startingCash) || math.IsInf(startingCash, 0) {
		startingCash = DefaultCash
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Ledger{
		prices:    prices,
		currency:  strings.ToUpper(currency),
		cash:      decimal.NewFromFloat(startingCash),
		positions: make(map[string]decimal.Decimal),
		now:       time.Now,
	}
}

// Currency is the ledger's cash currency code.
func (l *Ledger) Currency() string {
	return l.currency
}

// Cash returns the current balance.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash.InexactFloat64()
}

// Holding returns the held quantity of symbol.
func (l *Ledger) Holding(symbol string) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.positions[symbol]
	return q.InexactFloat64(), ok
}

// Positions returns all holdings sorted by symbol.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Position, 0, len(l.positions))
	for sym, q := range l.positions {
		out = append(out, Position{Symbol: sym, Quantity: q.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// SeedCash replaces the balance with a parsed positive amount. Unparseable
// or non-positive input is ignored and reported as false.
func (l *Ledger) SeedCash(input string) bool {
	amount, err := ParseAmount(input)
	if err != nil {
		observ.Warn("cash_seed_ignored", map[string]any{"input": input, "error": err.Error()})
		return false
	}
	l.mu.Lock()
	l.cash = decimal.NewFromFloat(amount)
	l.mu.Unlock()
	observ.Log("cash_seeded", map[string]any{"cash": amount, "currency": l.currency})
	return true
}

// ParseAmount parses a positive finite number; a comma is accepted as the
// decimal separator.
func ParseAmount(input string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(input), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, input)
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return v, nil
}

// Buy purchases symbol. In Quantity mode amount is units; in Notional mode
// it is cash and exactly that much is debited.
func (l *Ledger) Buy(symbol string, amount float64, mode Mode) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	price, qty, cost, err := l.resolve(Buy, symbol, amount, mode)
	if err != nil {
		return Receipt{}, l.reject(err)
	}
	if l.cash.LessThan(cost) {
		return Receipt{}, l.reject(&TradeError{
			Side: Buy, Symbol: symbol, Err: ErrInsufficientFunds,
			Need: cost.InexactFloat64(), Have: l.cash.InexactFloat64(),
		})
	}

	l.cash = l.cash.Sub(cost)
	l.positions[symbol] = l.positions[symbol].Add(qty)
	return l.execute(Receipt{
		Side:     Buy,
		Symbol:   symbol,
		Mode:     mode,
		Quantity: qty.InexactFloat64(),
		Price:    price.InexactFloat64(),
		Amount:   cost.InexactFloat64(),
	}), nil
}

// Sell disposes of symbol. Selling up to DustEpsilon more than held is
// tolerated; a remainder below DustEpsilon closes the position.
func (l *Ledger) Sell(symbol string, amount float64, mode Mode) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	price, qty, proceeds, err := l.resolve(Sell, symbol, amount, mode)
	if err != nil {
		return Receipt{}, l.reject(err)
	}
	held, ok := l.positions[symbol]
	if !ok || held.LessThan(qty.Sub(dust)) {
		return Receipt{}, l.reject(&TradeError{
			Side: Sell, Symbol: symbol, Err: ErrInsufficientHolding,
			Need: qty.InexactFloat64(), Have: held.InexactFloat64(),
		})
	}

	l.cash = l.cash.Add(proceeds)
	remaining := held.Sub(qty)
	closed := remaining.LessThan(dust)
	if closed {
		delete(l.positions, symbol)
	} else {
		l.positions[symbol] = remaining
	}
	return l.execute(Receipt{
		Side:     Sell,
		Symbol:   symbol,
		Mode:     mode,
		Quantity: qty.InexactFloat64(),
		Price:    price.InexactFloat64(),
		Amount:   proceeds.InexactFloat64(),
		Closed:   closed,
	}), nil
}

// resolve validates a request and returns price, quantity and cash amount.
func (l *Ledger) resolve(side Side, symbol string, amount float64, mode Mode) (price, qty, cash decimal.Decimal, err error) {
	if symbol == "" || amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return price, qty, cash, &TradeError{Side: side, Symbol: symbol, Err: ErrInvalidInput}
	}
	if mode != Quantity && mode != Notional {
		return price, qty, cash, &TradeError{Side: side, Symbol: symbol, Err: ErrInvalidInput}
	}
	p, ok := l.prices.Price(symbol)
	if !ok {
		return price, qty, cash, &TradeError{Side: side, Symbol: symbol, Err: ErrUnknownSymbol}
	}
	if p <= 0 {
		return price, qty, cash, &TradeError{Side: side, Symbol: symbol, Err: ErrInvalidInput}
	}

	price = decimal.NewFromFloat(p)
	a := decimal.NewFromFloat(amount)
	if mode == Notional {
		return price, a.Div(price), a, nil
	}
	return price, a, price.Mul(a), nil
}

func (l *Ledger) execute(r Receipt) Receipt {
	r.CashAfter = l.cash.InexactFloat64()
	r.At = l.now()
	observ.Trades.WithLabelValues(string(r.Side), "ok").Inc()
	observ.Log("trade_executed", map[string]any{
		"side":       string(r.Side),
		"symbol":     r.Symbol,
		"mode":       string(r.Mode),
		"quantity":   r.Quantity,
		"price":      r.Price,
		"amount":     r.Amount,
		"cash_after": r.CashAfter,
	})
	return r
}

func (l *Ledger) reject(err error) error {
	result := "rejected"
	side := ""
	var te *TradeError
	if errors.As(err, &te) {
		side = string(te.Side)
		switch te.Err {
		case ErrInsufficientFunds:
			result = "insufficient_funds"
		case ErrInsufficientHolding:
			result = "insufficient_holding"
		case ErrUnknownSymbol:
			result = "unknown_symbol"
		default:
			result = "invalid_input"
		}
	}
	observ.Trades.WithLabelValues(side, result).Inc()
	observ.Warn("trade_rejected", map[string]any{"side": side, "result": result, "error": err.Error()})
	return err
}
