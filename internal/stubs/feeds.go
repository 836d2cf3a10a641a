// Package stubs serves deterministic stand-ins for the Stooq, NBP, Binance
// and CoinCap endpoints so the tracker can run and be tested offline.
package stubs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/Rajchodisetti/stock-tracker/internal/adapters"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// Feeds holds the prices served by each fake endpoint.
type Feeds struct {
	Equity *adapters.StaticSource // stooq tickers, local currency
	Fx     *adapters.StaticSource // lower-case currency codes
	Crypto *adapters.StaticSource // USD prices keyed by CoinCap id and Binance pair

	mu   sync.RWMutex
	down map[string]bool
}

// NewFeeds creates feeds over the given price tables. Crypto prices keyed
// by a CoinCap id are also served for the matching Binance USDT pair.
func NewFeeds(equity, fx, crypto map[string]float64) *Feeds {
	pairs := make(map[string]float64, len(crypto)*2)
	for id, p := range crypto {
		pairs[id] = p
	}
	if p, ok := crypto["bitcoin"]; ok {
		pairs["btcusdt"] = p
	}
	return &Feeds{
		Equity: adapters.NewStaticSource("stub-stooq", equity),
		Fx:     adapters.NewStaticSource("stub-nbp", fx),
		Crypto: adapters.NewStaticSource("stub-crypto", pairs),
		down:   make(map[string]bool),
	}
}

// SetDown makes one endpoint ("stooq", "nbp", "binance", "coincap") answer
// 503 until cleared.
func (f *Feeds) SetDown(endpoint string, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down[endpoint] = down
}

func (f *Feeds) isDown(endpoint string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.down[endpoint]
}

// Handler routes the four fake endpoints plus /health.
func (f *Feeds) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.HandleFunc("/q/l/", f.guard("stooq", f.handleStooq)).Methods(http.MethodGet)
	r.HandleFunc("/api/exchangerates/rates/a/{code}/", f.guard("nbp", f.handleNBP)).Methods(http.MethodGet)
	r.HandleFunc("/api/v3/ticker/price", f.guard("binance", f.handleBinance)).Methods(http.MethodGet)
	r.HandleFunc("/v2/assets/{id}", f.guard("coincap", f.handleCoinCap)).Methods(http.MethodGet)
	return r
}

func (f *Feeds) guard(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		observ.Debug("stub_request", map[string]any{"endpoint": endpoint, "url": r.URL.String()})
		if f.isDown(endpoint) {
			http.Error(w, endpoint+" unavailable", http.StatusServiceUnavailable)
			return
		}
		next(w, r)
	}
}

func (f *Feeds) handleStooq(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToLower(r.URL.Query().Get("s"))
	w.Header().Set("Content-Type", "text/csv")
	fmt.Fprintln(w, "Symbol,Date,Time,Open,High,Low,Close")

	price, err := f.Equity.FetchPrice(r.Context(), ticker)
	if err != nil {
		fmt.Fprintf(w, "%s,N/D,N/D,N/D,N/D,N/D,N/D\n", strings.ToUpper(ticker))
		return
	}
	now := time.Now().UTC()
	fmt.Fprintf(w, "%s,%s,%s,%.2f,%.2f,%.2f,%.2f\n",
		strings.ToUpper(ticker), now.Format("2006-01-02"), now.Format("15:04:05"), price, price, price, price)
}

func (f *Feeds) handleNBP(w http.ResponseWriter, r *http.Request) {
	code := strings.ToLower(mux.Vars(r)["code"])
	rate, err := f.Fx.FetchPrice(r.Context(), code)
	if err != nil {
		http.Error(w, "404 NotFound - Not Found - Brak danych", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"table":    "A",
		"currency": code,
		"code":     strings.ToUpper(code),
		"rates": []map[string]any{{
			"no":            "001/A/NBP/STUB",
			"effectiveDate": time.Now().UTC().Format("2006-01-02"),
			"mid":           rate,
		}},
	})
}

func (f *Feeds) handleBinance(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	price, err := f.Crypto.FetchPrice(r.Context(), symbol)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{"code": -1121, "msg": "Invalid symbol."})
		return
	}
	writeJSON(w, map[string]string{"symbol": symbol, "price": fmt.Sprintf("%.8f", price)})
}

func (f *Feeds) handleCoinCap(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	price, err := f.Crypto.FetchPrice(r.Context(), id)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"error": id + " not found"})
		return
	}
	writeJSON(w, map[string]any{
		"data":      map[string]string{"id": id, "priceUsd": fmt.Sprintf("%.10f", price)},
		"timestamp": time.Now().UnixMilli(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	_ = json.NewEncoder(w).Encode(v)
}
