package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/Rajchodisetti/stock-tracker/internal/adapters"
	"github.com/Rajchodisetti/stock-tracker/internal/market"
)

type quoteCmd struct {
	config  string
	class   string
	id      string
	timeout time.Duration
}

func (*quoteCmd) Name() string { return "quote" }
func (*quoteCmd) Synopsis() string { return "fetch one price through the configured sources" }
func (*quoteCmd) Usage() string {
	return `stocktracker quote -class <equity|fx|crypto> -id <source id>

  Fetches a single price the same way the monitor does and prints it.
  Fx prices are PLN per unit; crypto prices are converted with the
  USD/PLN rate, fetched first.
`
}

func (q *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&q.config, "config", "", "Path to the YAML configuration.")
	f.StringVar(&q.class, "class", "equity", "Asset class: equity, fx or crypto.")
	f.StringVar(&q.id, "id", "", "Source id, e.g. pko, eur or bitcoin.")
	f.DurationVar(&q.timeout, "timeout", 10*time.Second, "Overall fetch timeout.")
}

func (q *quoteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(q.id) == "" {
		fmt.Fprintln(os.Stderr, "-id is required")
		return subcommands.ExitUsageError
	}
	class, err := market.ParseAssetClass(q.class)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	cfg, err := loadConfig(q.config, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	agg, _ := buildAggregator(cfg)
	if class == market.ClassCrypto {
		agg.FetchFx(ctx, agg.USDCode())
	}
	price, live := agg.FetchPrice(ctx, class, strings.ToLower(q.id), adapters.NoUpdate)
	if !live {
		fmt.Fprintf(os.Stderr, "no live %s price for %s\n", class, q.id)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s %s %.4f %s\n", class, q.id, price, cfg.Currency)
	return subcommands.ExitSuccess
}
