package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

const (
	defaultNBPBaseURL     = "http://api.nbp.pl"
	defaultBinanceBaseURL = "https://api.binance.com"
	defaultCoinCapBaseURL = "https://api.coincap.io"
)

// JSONSource fetches a JSON document and extracts the price with a JSONPath
// expression. The value may be a JSON number or a numeric string.
type JSONSource struct {
	*httpSource
	pathFormat string // appended to the base URL, receives the escaped id
	pricePath  string
	aliases    map[string]string
	upperIDs   bool
}

// JSONOption customises a JSONSource.
type JSONOption func(*JSONSource)

// WithAliases maps caller identifiers onto the identifiers the endpoint expects.
func WithAliases(aliases map[string]string) JSONOption {
	return func(s *JSONSource) {
		for k, v := range aliases {
			s.aliases[strings.ToLower(k)] = v
		}
	}
}

// WithUppercaseIDs upper-cases identifiers that have no alias.
func WithUppercaseIDs() JSONOption {
	return func(s *JSONSource) { s.upperIDs = true }
}

// NewJSONSource creates a JSON quote source.
func NewJSONSource(name, defaultBaseURL, pathFormat, pricePath string, config HTTPConfig, opts ...JSONOption) *JSONSource {
	s := &JSONSource{
		httpSource: newHTTPSource(name, defaultBaseURL, config),
		pathFormat: pathFormat,
		pricePath:  pricePath,
		aliases:    map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewNBPSource reads the central-bank mid rate for a currency code.
func NewNBPSource(config HTTPConfig) *JSONSource {
	return NewJSONSource("nbp", defaultNBPBaseURL, "/api/exchangerates/rates/a/%s/?format=json", "$.rates[0].mid", config)
}

// NewBinanceSource reads the USDT ticker price; "bitcoin" maps to BTCUSDT.
func NewBinanceSource(config HTTPConfig) *JSONSource {
	return NewJSONSource("binance", defaultBinanceBaseURL, "/api/v3/ticker/price?symbol=%s", "$.price", config,
		WithAliases(map[string]string{"bitcoin": "BTCUSDT", "btc": "BTCUSDT"}),
		WithUppercaseIDs(),
	)
}

// NewCoinCapSource reads the USD price of an asset id such as "bitcoin".
func NewCoinCapSource(config HTTPConfig) *JSONSource {
	return NewJSONSource("coincap", defaultCoinCapBaseURL, "/v2/assets/%s", "$.data.priceUsd", config)
}

// FetchPrice implements QuoteSource.
func (s *JSONSource) FetchPrice(ctx context.Context, id string) (float64, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, NewBadSymbolError(s.name, id, "empty id")
	}
	remote := s.resolve(id)
	requestURL := s.config.BaseURL + fmt.Sprintf(s.pathFormat, url.PathEscape(remote))

	body, err := s.get(ctx, id, requestURL)
	if err != nil {
		return 0, err
	}
	return extractPrice(s.name, id, s.pricePath, body)
}

func (s *JSONSource) resolve(id string) string {
	if alias, ok := s.aliases[strings.ToLower(id)]; ok {
		return alias
	}
	if s.upperIDs {
		return strings.ToUpper(id)
	}
	return strings.ToLower(id)
}

// extractPrice evaluates path against body and returns a positive price.
func extractPrice(source, id, path string, body []byte) (float64, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, NewParseError(source, id, "invalid json", err)
	}
	val, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, NewParseError(source, id, fmt.Sprintf("path %s not found", path), err)
	}
	// filters and slices come back as a list, plain paths as a value
	if list, ok := val.([]any); ok {
		if len(list) == 0 {
			return 0, NewParseError(source, id, fmt.Sprintf("path %s matched nothing", path), nil)
		}
		val = list[0]
	}

	var price float64
	switch v := val.(type) {
	case float64:
		price = v
	case string:
		price, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, NewParseError(source, id, fmt.Sprintf("value %q is not a number", v), err)
		}
	default:
		return 0, NewParseError(source, id, fmt.Sprintf("unexpected value type %T at %s", val, path), nil)
	}
	if price <= 0 {
		return 0, NewProviderError(source, id, fmt.Sprintf("non-positive price %.6f", price), nil)
	}
	return price, nil
}
