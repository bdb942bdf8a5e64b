package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

type Engine struct {
	db              dataStore
	backtester      *backtester
	portfolioConfig *PortfolioConfig
	reportingConfig *ReportingConfig
	out             io.Writer
}

type EngineOption func(*Engine)

// WithOutput sets where the report and the progress bar are written.
func WithOutput(w io.Writer) EngineOption {
	return func(e *Engine) {
		e.out = w
		e.backtester.progress = w
	}
}

// WithProgress redirects the progress bar only. A nil writer hides it.
func WithProgress(w io.Writer) EngineOption {
	return func(e *Engine) {
		e.backtester.progress = w
	}
}

func WithEngineLogger(log logrus.FieldLogger) EngineOption {
	return func(e *Engine) {
		e.backtester.log = log
	}
}

func NewEngine(
	instruments []*InstrumentConfig,
	strat strategy,
	portfolioConfig *PortfolioConfig,
	reportingConfig *ReportingConfig,
	db dataStore,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		db:              db,
		backtester:      newBacktester(instruments, strat, logrus.StandardLogger()),
		portfolioConfig: portfolioConfig,
		reportingConfig: reportingConfig,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run loads the candles, replays them through the strategy and returns the
// performance report. The finished portfolio stays available via Portfolio.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if err := e.loadData(ctx); err != nil {
		return nil, err
	}
	e.backtester.timeline = buildTimeline(e.backtester.instruments)

	bt := e.backtester
	portfolio, err := NewPortfolio(
		e.portfolioConfig.initialCash,
		WithClock(func() time.Time { return bt.curTime }),
		WithLogger(bt.log),
	)
	if err != nil {
		return nil, err
	}
	bt.portfolio = portfolio

	if err := bt.run(); err != nil {
		return nil, err
	}

	start, end := getGlobalTimeRange(bt.instruments)
	report := e.generateReport(start, end, portfolio)

	if e.out != nil {
		e.printReport(e.out, report)
	}
	if path := e.reportingConfig.tradesFile; path != "" {
		if err := writeFilledOrdersCSVFile(path, portfolio.FilledOrders()); err != nil {
			return report, err
		}
	}
	if path := e.reportingConfig.historyFile; path != "" {
		if err := writeHistoryCSVFile(path, portfolio.History()); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Portfolio returns the portfolio of the last run, nil before Run.
func (e *Engine) Portfolio() *Portfolio {
	return e.backtester.portfolio
}

func (e *Engine) loadData(ctx context.Context) error {
	for _, inst := range e.backtester.instruments {
		asset, err := e.db.GetAssetByTicker(ctx, inst.ticker)
		if err != nil {
			return fmt.Errorf("load asset %s: %w", inst.ticker, err)
		}
		cs, err := e.db.GetCandles(ctx, asset.Id, inst.ticker, inst.interval, inst.start, inst.end)
		if err != nil {
			return fmt.Errorf("load %s candles: %w", inst.ticker, err)
		}
		inst.candles = cs
	}
	return nil
}
