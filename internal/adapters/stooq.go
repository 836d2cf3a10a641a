package adapters

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultStooqBaseURL = "https://stooq.pl"
	stooqCloseColumn    = 6 // Symbol,Date,Time,Open,High,Low,Close
)

// StooqSource quotes equities and indices from the Stooq CSV endpoint.
type StooqSource struct {
	*httpSource
}

// NewStooqSource creates the equity quote source.
func NewStooqSource(config HTTPConfig) *StooqSource {
	return &StooqSource{httpSource: newHTTPSource("stooq", defaultStooqBaseURL, config)}
}

// FetchPrice returns the last close for ticker.
func (s *StooqSource) FetchPrice(ctx context.Context, ticker string) (float64, error) {
	ticker = strings.ToLower(strings.TrimSpace(ticker))
	if ticker == "" {
		return 0, NewBadSymbolError(s.name, ticker, "empty ticker")
	}
	requestURL := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2ohlc&h&e=csv", s.config.BaseURL, url.QueryEscape(ticker))

	body, err := s.get(ctx, ticker, requestURL)
	if err != nil {
		return 0, err
	}
	return parseStooqCSV(s.name, ticker, body)
}

// parseStooqCSV reads the close column of the first data row.
func parseStooqCSV(source, ticker string, body []byte) (float64, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		return 0, NewParseError(source, ticker, "missing header", err)
	}
	row, err := r.Read()
	if err == io.EOF {
		return 0, NewBadSymbolError(source, ticker, "no data row")
	}
	if err != nil {
		return 0, NewParseError(source, ticker, "malformed csv", err)
	}
	if len(row) <= stooqCloseColumn {
		return 0, NewParseError(source, ticker, fmt.Sprintf("expected %d columns, got %d", stooqCloseColumn+1, len(row)), nil)
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(row[stooqCloseColumn]), 64)
	if err != nil {
		// Stooq reports unknown tickers as N/D
		return 0, NewBadSymbolError(source, ticker, fmt.Sprintf("close %q is not a number", row[stooqCloseColumn]))
	}
	if price <= 0 {
		return 0, NewProviderError(source, ticker, fmt.Sprintf("non-positive close %.4f", price), nil)
	}
	return price, nil
}
