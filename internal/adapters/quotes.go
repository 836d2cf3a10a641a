// Package adapters turns unreliable external price endpoints into quote
// sources, composes them into fallback chains and aggregates them per asset
// class.
package adapters

import (
	"context"
	"errors"
	"fmt"
)

// QuoteSource fetches the latest price for a source-specific identifier.
type QuoteSource interface {
	Name() string
	FetchPrice(ctx context.Context, id string) (float64, error)
}

// QuoteError represents the ways a quote fetch can fail. All of them mean
// "source unavailable" to callers; Type only drives logging and metrics.
type QuoteError struct {
	Type    string // "network", "rate_limit", "provider_error", "bad_symbol", "parse"
	Source  string
	Symbol  string
	Message string
	Cause   error
}

func (e *QuoteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s error for %s: %s (%v)", e.Source, e.Type, e.Symbol, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s error for %s: %s", e.Source, e.Type, e.Symbol, e.Message)
}

func (e *QuoteError) Unwrap() error {
	return e.Cause
}

// Common error constructors
func NewNetworkError(source, symbol, message string, cause error) *QuoteError {
	return &QuoteError{Type: "network", Source: source, Symbol: symbol, Message: message, Cause: cause}
}

func NewRateLimitError(source, symbol, message string) *QuoteError {
	return &QuoteError{Type: "rate_limit", Source: source, Symbol: symbol, Message: message}
}

func NewProviderError(source, symbol, message string, cause error) *QuoteError {
	return &QuoteError{Type: "provider_error", Source: source, Symbol: symbol, Message: message, Cause: cause}
}

func NewBadSymbolError(source, symbol, message string) *QuoteError {
	return &QuoteError{Type: "bad_symbol", Source: source, Symbol: symbol, Message: message}
}

func NewParseError(source, symbol, message string, cause error) *QuoteError {
	return &QuoteError{Type: "parse", Source: source, Symbol: symbol, Message: message, Cause: cause}
}

// ErrorType returns the QuoteError type of err, or "unknown".
func ErrorType(err error) string {
	var qe *QuoteError
	if errors.As(err, &qe) {
		return qe.Type
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "network"
	}
	return "unknown"
}
