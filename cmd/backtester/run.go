package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"backtester/internal/engine"
	"backtester/strategies/donchian"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// runCmd holds the flags for the 'run' subcommand.
type runCmd struct {
	tickers     string
	tradesFile  string
	historyFile string
	quiet       bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run the Donchian breakout backtest and print its report" }
func (*runCmd) Usage() string {
	return `backtester [-config <file>] run [-tickers AAPL,MSFT] [-trades <csv>] [-history <csv>] [-q]

  Loads candles for every ticker, replays them through the strategy and
  prints the trading report. Flags override the matching config.ini keys.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.tickers, "tickers", "", "Comma separated tickers, defaults to backtest.tickers")
	f.StringVar(&c.tradesFile, "trades", "", "Write filled orders to this CSV file")
	f.StringVar(&c.historyFile, "history", "", "Write the valuation history to this CSV file")
	f.BoolVar(&c.quiet, "q", false, "Hide the progress bar")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if c.tickers != "" {
		cfg.Backtest.Tickers = strings.Split(strings.ToUpper(c.tickers), ",")
	}
	if c.tradesFile != "" {
		cfg.Report.TradesFile = c.tradesFile
	}
	if c.historyFile != "" {
		cfg.Report.HistoryFile = c.historyFile
	}

	store, closeStore, err := openStore(ctx, cfg.Data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening data source: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeStore()

	strat, err := donchian.New(donchian.Params{
		Lookback:        cfg.Strategy.Lookback,
		AtrPeriod:       cfg.Strategy.AtrPeriod,
		AtrMultiplier:   cfg.Strategy.AtrMultiplier,
		PositionPercent: cfg.Strategy.PositionPercent,
	}, logrus.StandardLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	var instruments []*engine.InstrumentConfig
	for _, ticker := range cfg.Backtest.Tickers {
		instruments = append(instruments, engine.NewInstrumentConfig(
			strings.TrimSpace(ticker), cfg.Data.Interval, cfg.Backtest.Start, cfg.Backtest.End,
		))
	}

	eng := engine.NewEngine(
		engine.NewInstrumentConfigs(instruments...),
		strat,
		engine.NewPortfolioConfig(cfg.Backtest.InitialCash),
		engine.NewReportingConfig(cfg.Report.RiskFreeRate, cfg.Report.Currency, cfg.Report.TradesFile, cfg.Report.HistoryFile),
		store,
		engine.WithOutput(os.Stdout),
		engine.WithProgress(c.progressWriter()),
		engine.WithEngineLogger(logrus.StandardLogger()),
	)
	if _, err := eng.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error running backtest: %v\n", err)
		return subcommands.ExitFailure
	}

	summary := eng.Portfolio().Summary()
	logrus.WithFields(logrus.Fields{
		"total_value":  summary.TotalValue,
		"return_pct":   summary.TotalReturnPct.Round(2),
		"positions":    summary.PositionsCount,
		"open_orders":  summary.OpenOrdersCount,
		"filled_count": summary.FilledOrdersCount,
	}).Info("backtest finished")
	return subcommands.ExitSuccess
}

// progressWriter draws the bar on stderr only when a user is watching.
func (c *runCmd) progressWriter() io.Writer {
	if c.quiet || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return os.Stderr
}
