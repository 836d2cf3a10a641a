package portfolio

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientHolding = errors.New("insufficient holding")
	ErrUnknownSymbol       = errors.New("unknown symbol")
)

// TradeError is the typed rejection returned by Buy and Sell. Err is one of
// the sentinels above; Need and Have are set for the insufficient cases.
type TradeError struct {
	Side   Side
	Symbol string
	Err    error
	Need   float64
	Have   float64
}

func (e *TradeError) Error() string {
	if e.Err == ErrInsufficientFunds || e.Err == ErrInsufficientHolding {
		return fmt.Sprintf("%s %s: %v (need %.4f, have %.4f)", e.Side, e.Symbol, e.Err, e.Need, e.Have)
	}
	return fmt.Sprintf("%s %s: %v", e.Side, e.Symbol, e.Err)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}
