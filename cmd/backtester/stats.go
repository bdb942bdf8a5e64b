package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"backtester/internal/stats"

	"github.com/google/subcommands"
)

// statsCmd holds the flags for the 'stats' subcommand.
type statsCmd struct{}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "print price and log return statistics of tickers" }
func (*statsCmd) Usage() string {
	return `backtester [-config <file>] stats <ticker>...

  Prints the current price, price and daily log return mean and deviation,
  and the annualized volatility over the configured backtest range.
`
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) {}

func (c *statsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	tickers := f.Args()
	if len(tickers) == 0 {
		tickers = cfg.Backtest.Tickers
	}

	store, closeStore, err := openStore(ctx, cfg.Data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening data source: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeStore()

	for _, ticker := range tickers {
		ticker = strings.ToUpper(ticker)
		asset, err := store.GetAssetByTicker(ctx, ticker)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", ticker, err)
			return subcommands.ExitFailure
		}
		candles, err := store.GetCandles(ctx, asset.Id, ticker, cfg.Data.Interval, cfg.Backtest.Start, cfg.Backtest.End)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s candles: %v\n", ticker, err)
			return subcommands.ExitFailure
		}
		ps, err := stats.Compute(stats.Closes(candles))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error computing %s statistics: %v\n", ticker, err)
			return subcommands.ExitFailure
		}
		printStats(os.Stdout, ticker, ps)
	}
	return subcommands.ExitSuccess
}

func printStats(w io.Writer, ticker string, ps stats.PriceStats) {
	fmt.Fprintf(w, "===== %s =====\n", ticker)
	fmt.Fprintf(w, "current_price: %.4f\n", ps.CurrentPrice)
	fmt.Fprintf(w, "price_mean:    %.4f\n", ps.PriceMean)
	fmt.Fprintf(w, "price_std:     %.4f\n", ps.PriceStd)
	fmt.Fprintf(w, "return_mean:   %.6f\n", ps.ReturnMean)
	fmt.Fprintf(w, "return_std:    %.6f\n", ps.ReturnStd)
	fmt.Fprintf(w, "volatility:    %.4f\n", ps.Volatility)
	fmt.Fprintf(w, "data_points:   %d\n", ps.DataPoints)
}
