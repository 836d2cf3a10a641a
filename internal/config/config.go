// Package config loads the tracker configuration from YAML, a .env file and
// STOCKTRACKER_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Rajchodisetti/stock-tracker/internal/adapters"
	"github.com/Rajchodisetti/stock-tracker/internal/alerts"
	"github.com/Rajchodisetti/stock-tracker/internal/market"
	"github.com/Rajchodisetti/stock-tracker/internal/monitor"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

const envPrefix = "STOCKTRACKER_"

type Sources struct {
	Stooq   adapters.HTTPConfig `yaml:"stooq"`
	NBP     adapters.HTTPConfig `yaml:"nbp"`
	Binance adapters.HTTPConfig `yaml:"binance"`
	CoinCap adapters.HTTPConfig `yaml:"coincap"`
}

type Server struct {
	ListenAddr      string `yaml:"listen_addr"`
	ReadTimeoutMs   int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs  int    `yaml:"write_timeout_ms"`
	SnapshotEveryMs int    `yaml:"snapshot_every_ms"` // websocket market snapshots
}

type Redis struct {
	Addr     string `yaml:"addr"` // empty disables the notifier
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLMs    int    `yaml:"ttl_ms"`
}

type Listing struct {
	Symbol   string  `yaml:"symbol"`
	Class    string  `yaml:"class"` // equity | fx | crypto
	SourceID string  `yaml:"source_id"`
	Seed     float64 `yaml:"seed"`
}

type Root struct {
	LogLevel       string                    `yaml:"log_level"`
	Currency       string                    `yaml:"currency"`
	StartingCash   float64                   `yaml:"starting_cash"`
	AlertQueueSize int                       `yaml:"alert_queue_size"`
	Server         Server                    `yaml:"server"`
	Sources        Sources                   `yaml:"sources"`
	Aggregator     adapters.AggregatorConfig `yaml:"aggregator"`
	Monitor        monitor.Config            `yaml:"monitor"`
	Slack          alerts.SlackConfig        `yaml:"slack"`
	Redis          Redis                     `yaml:"redis"`
	Roster         []Listing                 `yaml:"roster"`
}

// DefaultRoster is the WIG20 index, the crypto and fx pairs, and twenty
// Warsaw-listed equities with their fallback prices.
func DefaultRoster() []Listing {
	return []Listing{
		{Symbol: "WIG20", Class: "equity", SourceID: "wig20", Seed: 2400},
		{Symbol: "BITCOIN", Class: "crypto", SourceID: "bitcoin"},
		{Symbol: "USD/PLN", Class: "fx", SourceID: "usd", Seed: 4.0},
		{Symbol: "EUR/PLN", Class: "fx", SourceID: "eur", Seed: 4.3},
		{Symbol: "CHF/PLN", Class: "fx", SourceID: "chf", Seed: 4.5},
		{Symbol: "PKO_BP", Class: "equity", SourceID: "pko", Seed: 58},
		{Symbol: "PEKAO", Class: "equity", SourceID: "peo", Seed: 155},
		{Symbol: "SANTANDER", Class: "equity", SourceID: "spl", Seed: 560},
		{Symbol: "MBANK", Class: "equity", SourceID: "mbk", Seed: 690},
		{Symbol: "ALIOR", Class: "equity", SourceID: "alr", Seed: 95},
		{Symbol: "PZU", Class: "equity", SourceID: "pzu", Seed: 49},
		{Symbol: "KRUK", Class: "equity", SourceID: "kru", Seed: 460},
		{Symbol: "PKNORLEN", Class: "equity", SourceID: "pkn", Seed: 65},
		{Symbol: "KGHM", Class: "equity", SourceID: "kgh", Seed: 115},
		{Symbol: "PGE", Class: "equity", SourceID: "pge", Seed: 7.5},
		{Symbol: "JSW", Class: "equity", SourceID: "jsw", Seed: 30},
		{Symbol: "ALLEGRO", Class: "equity", SourceID: "ale", Seed: 32},
		{Symbol: "DINO", Class: "equity", SourceID: "dnp", Seed: 380},
		{Symbol: "LPP", Class: "equity", SourceID: "lpp", Seed: 17000},
		{Symbol: "PEPCO", Class: "equity", SourceID: "pco", Seed: 23},
		{Symbol: "CDPROJEKT", Class: "equity", SourceID: "cdr", Seed: 150},
		{Symbol: "CYFR_POLSAT", Class: "equity", SourceID: "cps", Seed: 12},
		{Symbol: "ORANGE", Class: "equity", SourceID: "opl", Seed: 8.5},
		{Symbol: "KETY", Class: "equity", SourceID: "kty", Seed: 800},
		{Symbol: "BUDIMEX", Class: "equity", SourceID: "bdx", Seed: 700},
	}
}

// Default returns the configuration used when no file is given.
func Default() Root {
	var c Root
	c.applyDefaults()
	return c
}

// Load reads path (Default when empty) and fills unset fields.
func Load(path string) (Root, error) {
	if path == "" {
		return Default(), nil
	}
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	c.applyDefaults()
	return c, c.Validate()
}

func (c *Root) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Currency == "" {
		c.Currency = "PLN"
	}
	if c.StartingCash <= 0 {
		c.StartingCash = 10000
	}
	if c.AlertQueueSize <= 0 {
		c.AlertQueueSize = 256
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.ReadTimeoutMs <= 0 {
		c.Server.ReadTimeoutMs = 5000
	}
	if c.Server.WriteTimeoutMs <= 0 {
		c.Server.WriteTimeoutMs = 10000
	}
	if c.Server.SnapshotEveryMs <= 0 {
		c.Server.SnapshotEveryMs = 1000
	}
	if c.Redis.TTLMs <= 0 {
		c.Redis.TTLMs = 3600000
	}
	if c.Aggregator.DefaultUSDRate <= 0 {
		c.Aggregator.DefaultUSDRate = 4.0
	}
	if c.Aggregator.CryptoLastResort <= 0 {
		c.Aggregator.CryptoLastResort = 380000
	}
	if c.Aggregator.USDCode == "" {
		c.Aggregator.USDCode = "usd"
	}
	if c.Monitor.USDCode == "" {
		c.Monitor.USDCode = c.Aggregator.USDCode
	}
	c.Monitor = c.Monitor.WithDefaults()
	if len(c.Roster) == 0 {
		c.Roster = DefaultRoster()
	}
}

// Validate checks the roster.
func (c Root) Validate() error {
	seen := make(map[string]bool, len(c.Roster))
	for i, l := range c.Roster {
		if strings.TrimSpace(l.Symbol) == "" {
			return fmt.Errorf("roster[%d]: symbol is required", i)
		}
		if seen[l.Symbol] {
			return fmt.Errorf("roster[%d]: duplicate symbol %s", i, l.Symbol)
		}
		seen[l.Symbol] = true
		if _, err := market.ParseAssetClass(l.Class); err != nil {
			return fmt.Errorf("roster[%d] %s: %w", i, l.Symbol, err)
		}
		if l.SourceID == "" {
			return fmt.Errorf("roster[%d] %s: source_id is required", i, l.Symbol)
		}
		if l.Seed < 0 {
			return fmt.Errorf("roster[%d] %s: seed must be >= 0", i, l.Symbol)
		}
	}
	return nil
}

// Listings converts the roster for monitor.Bootstrap.
func (c Root) Listings() ([]monitor.Listing, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	out := make([]monitor.Listing, len(c.Roster))
	for i, l := range c.Roster {
		class, _ := market.ParseAssetClass(l.Class)
		out[i] = monitor.Listing{Symbol: l.Symbol, Class: class, SourceID: l.SourceID, Seed: l.Seed}
	}
	return out, nil
}

// LoadDotEnv loads files into the process environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from STOCKTRACKER_* variables.
func (c *Root) ApplyEnv() error {
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("LISTEN_ADDR"); ok {
		c.Server.ListenAddr = v
	}
	if v, ok := lookup("STARTING_CASH"); ok {
		// an unusable cash seed is ignored, like Ledger.SeedCash
		cash, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil || cash <= 0 || math.IsNaN(cash) || math.IsInf(cash, 0) {
			observ.Warn("starting_cash_ignored", map[string]any{
				"var":   envPrefix + "STARTING_CASH",
				"input": v,
				"kept":  c.StartingCash,
			})
		} else {
			c.StartingCash = cash
		}
	}
	if v, ok := lookup("SLACK_WEBHOOK"); ok {
		c.Slack.WebhookURL = v
		c.Slack.Enabled = true
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
