package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/redis/go-redis/v9"

	"github.com/Rajchodisetti/stock-tracker/internal/adapters"
	"github.com/Rajchodisetti/stock-tracker/internal/alerts"
	"github.com/Rajchodisetti/stock-tracker/internal/api"
	"github.com/Rajchodisetti/stock-tracker/internal/config"
	"github.com/Rajchodisetti/stock-tracker/internal/monitor"
	"github.com/Rajchodisetti/stock-tracker/internal/observ"
	"github.com/Rajchodisetti/stock-tracker/internal/portfolio"
)

type runCmd struct {
	config  string
	env     string
	cash    string
	askCash bool
}

func (*runCmd) Name() string { return "run" }
func (*runCmd) Synopsis() string { return "seed prices, start the monitor and serve the API" }
func (*runCmd) Usage() string {
	return `stocktracker run [-config <file>] [-env <file,...>] [-cash <amount> | -ask-cash]

  Fetches a starting price for every configured instrument, then keeps
  them current (crypto every 5s, fx every 60s, simulated equities every
  1s), evaluates price alerts and serves the HTTP/WebSocket API until
  interrupted.
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.config, "config", "", "Path to the YAML configuration. Built-in defaults when empty.")
	f.StringVar(&r.env, "env", ".env", "Comma separated .env files; missing files are skipped.")
	f.StringVar(&r.cash, "cash", "", "Starting cash; invalid values keep the configured amount.")
	f.BoolVar(&r.askCash, "ask-cash", false, "Read the starting cash from stdin.")
}

func (r *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig(r.config, splitList(r.env))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	listings, err := cfg.Listings()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg, sources := buildAggregator(cfg)
	state, err := monitor.Bootstrap(ctx, agg, listings, cfg.Monitor)
	if err != nil {
		observ.Warn("bootstrap_failed", map[string]any{"error": err.Error()})
		return subcommands.ExitFailure
	}

	ledger := portfolio.NewLedger(state, cfg.StartingCash, cfg.Currency)
	if cash := r.startingCash(); cash != "" {
		ledger.SeedCash(cash)
	}

	notifiers, closeNotifiers := buildNotifiers(ctx, cfg)
	defer closeNotifiers()
	bus := alerts.NewBus(cfg.AlertQueueSize, notifiers...)

	mon := monitor.New(cfg.Monitor, state, agg, adapters.NewSimulator(), alerts.NewEngine(), bus)
	apiServer := api.NewServer(state, ledger, bus, sources...)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		bus.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = mon.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		apiServer.Run(ctx, time.Duration(cfg.Server.SnapshotEveryMs)*time.Millisecond)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			observ.Warn("http_shutdown_error", map[string]any{"error": err.Error()})
		}
	}()

	observ.Log("tracker_started", map[string]any{
		"addr":        cfg.Server.ListenAddr,
		"instruments": state.Len(),
		"cash":        ledger.Format(ledger.Cash()),
		"usd_rate":    agg.USDRate().Load(),
		"notifiers":   len(notifiers),
	})

	status := subcommands.ExitSuccess
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		observ.Warn("http_server_error", map[string]any{"error": err.Error()})
		status = subcommands.ExitFailure
		stop()
	}
	wg.Wait()
	observ.Log("tracker_stopped", map[string]any{"cash": ledger.Format(ledger.Cash())})
	return status
}

func (r *runCmd) startingCash() string {
	if r.cash != "" || !r.askCash {
		return r.cash
	}
	fmt.Fprint(os.Stderr, "Starting cash: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}

// buildNotifiers enables Slack and Redis delivery when configured. An
// unreachable Redis is logged and skipped.
func buildNotifiers(ctx context.Context, cfg config.Root) ([]alerts.Notifier, func()) {
	var out []alerts.Notifier
	closeFn := func() {}

	if cfg.Slack.Enabled && cfg.Slack.WebhookURL != "" {
		out = append(out, alerts.NewSlackNotifier(cfg.Slack))
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			observ.Warn("redis_unavailable", map[string]any{"addr": cfg.Redis.Addr, "error": err.Error()})
			_ = rdb.Close()
		} else {
			ttl := time.Duration(cfg.Redis.TTLMs) * time.Millisecond
			out = append(out, alerts.NewRedisNotifier(rdb, ttl))
			closeFn = func() { _ = rdb.Close() }
		}
	}
	return out, closeFn
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
