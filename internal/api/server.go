// Package api exposes market state, the portfolio ledger and the alert
// stream over HTTP, WebSocket and server-sent events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Rajchodisetti/stock-tracker/internal/adapters"
	"github.com/Rajchodisetti/stock-tracker/internal/alerts"
	"github.com/Rajchodisetti/stock-tracker/internal/market"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
	"github.com/Rajchodisetti/stock-tracker/internal/outbox"
	"github.com/Rajchodisetti/stock-tracker/internal/portfolio"
)

// HealthReporter is implemented by adapters.Chain.
type HealthReporter interface {
	Name() string
	Health() []adapters.HealthSnapshot
}

// Message is the envelope pushed to websocket clients.
type Message struct {
	Type        string              `json:"type"` // snapshot | alert
	Instruments []market.Instrument `json:"instruments,omitempty"`
	Alert       *alerts.Event       `json:"alert,omitempty"`
	Text        string              `json:"text,omitempty"`
	At          time.Time           `json:"at"`
}

type Server struct {
	state     *market.State
	ledger    *portfolio.Ledger
	bus       *alerts.Bus
	trades    *outbox.Outbox
	sources   []HealthReporter
	hub       *Hub
	router    *mux.Router
	upgrader  websocket.Upgrader
	heartbeat time.Duration
}

// NewServer wires the routes. sources may be empty.
func NewServer(state *market.State, ledger *portfolio.Ledger, bus *alerts.Bus, sources ...HealthReporter) *Server {
	s := &Server{
		state:     state,
		ledger:    ledger,
		bus:       bus,
		trades:    outbox.New(500, 10*time.Minute),
		sources:   sources,
		hub:       NewHub(),
		heartbeat: 10 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/instruments", s.handleListInstruments).Methods(http.MethodGet)
	// symbols such as USD/PLN contain a slash, so suffixed routes go first
	r.HandleFunc("/api/instruments/{symbol:.+}/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/instruments/{symbol:.+}/alerts", s.handleSetAlerts).Methods(http.MethodPut)
	r.HandleFunc("/api/instruments/{symbol:.+}", s.handleGetInstrument).Methods(http.MethodGet)
	r.HandleFunc("/api/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	r.HandleFunc("/api/trades", s.handleTrade).Methods(http.MethodPost)
	r.HandleFunc("/api/trades", s.handleListTrades).Methods(http.MethodGet)
	r.HandleFunc("/api/alerts/stream", s.handleAlertStream).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.Handle("/metrics", observ.Handler()).Methods(http.MethodGet)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run forwards alert events to websocket clients and broadcasts a market
// snapshot every snapshotEvery until ctx is cancelled.
func (s *Server) Run(ctx context.Context, snapshotEvery time.Duration) {
	events, cancel := s.bus.Subscribe(64)
	defer cancel()

	ticker := time.NewTicker(snapshotEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.hub.BroadcastJSON(alertMessage(ev))
		case <-ticker.C:
			if s.hub.Len() > 0 {
				s.hub.BroadcastJSON(s.snapshot())
			}
		}
	}
}

func (s *Server) snapshot() Message {
	return Message{Type: "snapshot", Instruments: s.state.Instruments(), At: time.Now().UTC()}
}

func alertMessage(ev alerts.Event) Message {
	return Message{Type: "alert", Alert: &ev, Text: ev.Message(), At: ev.At}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sources := make(map[string][]adapters.HealthSnapshot, len(s.sources))
	for _, src := range s.sources {
		sources[src.Name()] = src.Health()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"instruments": s.state.Len(),
		"clients":     s.hub.Len(),
		"sources":     sources,
	})
}

func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	all := s.state.Instruments()
	class := r.URL.Query().Get("class")
	if class == "" {
		writeJSON(w, http.StatusOK, all)
		return
	}
	c, err := market.ParseAssetClass(class)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out := make([]market.Instrument, 0, len(all))
	for _, in := range all {
		if in.Class == c {
			out = append(out, in)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := symbolVar(r)
	in, ok := s.state.Get(symbol)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown symbol " + symbol})
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := symbolVar(r)
	points, ok := s.state.History(symbol)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown symbol " + symbol})
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleSetAlerts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Below float64 `json:"below"`
		Above float64 `json:"above"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	in, err := s.state.SetAlerts(symbolVar(r), req.Below, req.Above)
	switch {
	case errors.Is(err, market.ErrUnknownSymbol):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}
	observ.Log("alerts_armed", map[string]any{"symbol": in.Symbol, "below": in.AlertBelow, "above": in.AlertAbove})
	writeJSON(w, http.StatusOK, in)
}

type portfolioResponse struct {
	portfolio.Valuation
	CashDisplay  string `json:"cash_display"`
	TotalDisplay string `json:"total_display"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	v := s.ledger.Valuation()
	writeJSON(w, http.StatusOK, portfolioResponse{
		Valuation:    v,
		CashDisplay:  s.ledger.Format(v.Cash),
		TotalDisplay: s.ledger.Format(v.Total),
	})
}

type tradeRequest struct {
	Side   string `json:"side"`
	Symbol string `json:"symbol"`
	Amount any    `json:"amount"` // number or string, "2,5" accepted
	Mode   string `json:"mode"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	mode, err := portfolio.ParseMode(req.Mode)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	symbol := strings.TrimSpace(req.Symbol)

	var trade func() (portfolio.Receipt, error)
	switch strings.ToLower(req.Side) {
	case string(portfolio.Buy):
		trade = func() (portfolio.Receipt, error) { return s.ledger.Buy(symbol, amount, mode) }
	case string(portfolio.Sell):
		trade = func() (portfolio.Receipt, error) { return s.ledger.Sell(symbol, amount, mode) }
	default:
		writeTradeError(w, fmt.Errorf("%w: side must be buy or sell", portfolio.ErrInvalidInput))
		return
	}

	entry, replayed, err := s.trades.Execute(strings.TrimSpace(r.Header.Get("Idempotency-Key")), trade)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, http.StatusOK, entry.Receipt)
}

// handleListTrades returns the journal, oldest first. ?limit=N keeps the
// newest N entries.
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.trades.Entries(limit))
}

func parseAmount(v any) (float64, error) {
	switch a := v.(type) {
	case float64:
		if a <= 0 {
			return 0, fmt.Errorf("%w: amount must be positive", portfolio.ErrInvalidInput)
		}
		return a, nil
	case string:
		return portfolio.ParseAmount(a)
	}
	return 0, fmt.Errorf("%w: amount is required", portfolio.ErrInvalidInput)
}

func writeTradeError(w http.ResponseWriter, err error) {
	status, code := http.StatusBadRequest, "invalid_input"
	switch {
	case errors.Is(err, portfolio.ErrUnknownSymbol):
		status, code = http.StatusNotFound, "unknown_symbol"
	case errors.Is(err, portfolio.ErrInsufficientFunds):
		status, code = http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, portfolio.ErrInsufficientHolding):
		status, code = http.StatusUnprocessableEntity, "insufficient_holding"
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := s.hub.AddClient(conn)
	_ = c.writeJSON(s.snapshot())

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.RemoveClient(conn)
			return
		}
	}
}

func symbolVar(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["symbol"])
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
