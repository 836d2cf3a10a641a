package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Rajchodisetti/stock-tracker/internal/adapters"
	"github.com/Rajchodisetti/stock-tracker/internal/config"
	"github.com/Rajchodisetti/stock-tracker/internal/market"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
	"github.com/Rajchodisetti/stock-tracker/internal/stubs"
)

func main() {
	addr := flag.String("addr", ":8091", "listen address")
	configPath := flag.String("config", "", "tracker config whose roster seeds the stub prices")
	walkMs := flag.Int("walk-ms", 2000, "random-walk interval for crypto and fx prices (0 disables)")
	btc := flag.Float64("btc-usd", 61000, "starting bitcoin price in USD")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	observ.SetLevel(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		observ.Warn("config_load_failed", map[string]any{"path": *configPath, "error": err.Error()})
		os.Exit(1)
	}

	equity, fx, crypto := priceTables(cfg.Roster, *btc)

	feeds := stubs.NewFeeds(equity, fx, crypto)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *walkMs > 0 {
		go feeds.Walk(ctx, time.Duration(*walkMs)*time.Millisecond, adapters.NewSimulator(), crypto, fx)
	}

	srv := &http.Server{Addr: *addr, Handler: feeds.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	observ.Log("stubs_listening", map[string]any{
		"addr":   *addr,
		"equity": len(equity),
		"fx":     len(fx),
		"crypto": len(crypto),
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		observ.Warn("stubs_server_error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

// priceTables splits the roster into per-endpoint price tables keyed by
// lower-case source id. Every crypto listing starts at btcUSD.
func priceTables(roster []config.Listing, btcUSD float64) (equity, fx, crypto map[string]float64) {
	equity = map[string]float64{}
	fx = map[string]float64{}
	crypto = map[string]float64{}
	for _, l := range roster {
		class, err := market.ParseAssetClass(l.Class)
		if err != nil {
			observ.Warn("stub_listing_skipped", map[string]any{"symbol": l.Symbol, "error": err.Error()})
			continue
		}
		id := strings.ToLower(l.SourceID)
		switch class {
		case market.ClassEquity:
			equity[id] = l.Seed
		case market.ClassFx:
			fx[id] = l.Seed
		case market.ClassCrypto:
			crypto[id] = btcUSD
		}
	}
	return equity, fx, crypto
}
