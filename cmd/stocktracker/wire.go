package main

import (
	"fmt"

	"github.com/Rajchodisetti/stock-tracker/internal/adapters"
	"github.com/Rajchodisetti/stock-tracker/internal/api"
	"github.com/Rajchodisetti/stock-tracker/internal/config"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// loadConfig reads .env files, the YAML file and the environment, then sets
// the log level.
func loadConfig(path string, envFiles []string) (config.Root, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return config.Root{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	observ.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// buildAggregator wires one chain per asset class: Stooq for equities, NBP
// for fx and Binance falling back to CoinCap for crypto.
func buildAggregator(cfg config.Root) (*adapters.Aggregator, []api.HealthReporter) {
	equity := adapters.NewChain("equity", adapters.NewStooqSource(cfg.Sources.Stooq))
	fx := adapters.NewChain("fx", adapters.NewNBPSource(cfg.Sources.NBP))
	crypto := adapters.NewChain("crypto",
		adapters.NewBinanceSource(cfg.Sources.Binance),
		adapters.NewCoinCapSource(cfg.Sources.CoinCap),
	)
	agg := adapters.NewAggregator(equity, fx, crypto, cfg.Aggregator)
	return agg, []api.HealthReporter{equity, fx, crypto}
}
