package engine

import (
	"errors"
	"io"
	"sort"
	"time"

	"backtester/types"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type backtester struct {
	instruments []*InstrumentConfig
	strategy    strategy
	portfolio   *Portfolio
	log         logrus.FieldLogger
	progress    io.Writer

	timeline   []time.Time
	curTime    time.Time
	feedIndex  map[string]int
	lastPrices map[string]decimal.Decimal
}

func newBacktester(instruments []*InstrumentConfig, strat strategy, log logrus.FieldLogger) *backtester {
	feedIndex := make(map[string]int)
	for _, inst := range instruments {
		feedIndex[inst.ticker] = 0
	}
	return &backtester{
		instruments: instruments,
		strategy:    strat,
		log:         log,
		timeline:    buildTimeline(instruments),
		feedIndex:   feedIndex,
		lastPrices:  make(map[string]decimal.Decimal),
	}
}

// run steps through every candle timestamp. For each step pending orders are
// swept against the new closes, the strategy sees the closed candles, and the
// portfolio is revalued at the step time.
func (b *backtester) run() error {
	if err := b.strategy.Init(b); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if b.progress != nil {
		bar = initProgressBar(len(b.timeline), b.progress)
	}

	for _, t := range b.timeline {
		b.curTime = t
		closed := b.advance(t)

		ticks := make(map[string]decimal.Decimal, len(closed))
		for _, c := range closed {
			ticks[c.Ticker] = c.Close
			b.lastPrices[c.Ticker] = c.Close
		}

		for _, order := range b.portfolio.SweepPending(ticks) {
			b.log.WithFields(logrus.Fields{
				"time":   t,
				"symbol": order.Symbol(),
				"type":   order.Kind().Type,
				"price":  order.FillPrice(),
			}).Info("pending order filled")
		}

		for _, c := range closed {
			for _, order := range b.strategy.OnCandle(c) {
				if err := b.place(order, c.Close); err != nil {
					return err
				}
			}
		}

		b.portfolio.Revalue(b.lastPrices, t)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return nil
}

// place executes market orders at price and parks the others in the ledger.
// Rejections for insufficient cash do not stop the run.
func (b *backtester) place(order *Order, price decimal.Decimal) error {
	if order.Kind().Type != types.TypeMarket {
		return b.portfolio.SubmitOrder(order)
	}
	_, err := b.portfolio.Execute(order, price)
	if errors.Is(err, ErrInsufficientCash) {
		b.log.WithFields(logrus.Fields{
			"time":     b.curTime,
			"order_id": order.ID(),
			"symbol":   order.Symbol(),
		}).WithError(err).Warn("market order rejected")
		return nil
	}
	return err
}

// advance returns the candles of every instrument stamped at t and moves
// the feed indexes past them. Indexes only go one way.
func (b *backtester) advance(t time.Time) []types.Candle {
	var out []types.Candle
	for _, inst := range b.instruments {
		i := b.feedIndex[inst.ticker]
		for i < len(inst.candles) && !inst.candles[i].Timestamp.After(t) {
			if inst.candles[i].Timestamp.Equal(t) {
				out = append(out, inst.candles[i])
			}
			i++
		}
		b.feedIndex[inst.ticker] = i
	}
	return out
}

func (b *backtester) GetPortfolioSnapshot() types.PortfolioView {
	return b.portfolio.GetPortfolioSnapshot(b.curTime)
}

func (b *backtester) HasPendingOrders(ticker string) bool {
	for range b.portfolio.PendingOrdersFor(ticker) {
		return true
	}
	return false
}

func buildTimeline(instruments []*InstrumentConfig) []time.Time {
	seen := make(map[int64]struct{})
	var timeline []time.Time
	for _, inst := range instruments {
		for _, c := range inst.candles {
			key := c.Timestamp.UnixNano()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			timeline = append(timeline, c.Timestamp)
		}
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })
	return timeline
}

func getGlobalTimeRange(instruments []*InstrumentConfig) (time.Time, time.Time) {
	if len(instruments) == 0 {
		return time.UnixMilli(0), time.UnixMilli(0)
	}

	minStart := instruments[0].start
	maxEnd := instruments[0].end

	for _, inst := range instruments[1:] {
		if inst.start.Before(minStart) {
			minStart = inst.start
		}
		if inst.end.After(maxEnd) {
			maxEnd = inst.end
		}
	}
	return minStart, maxEnd
}

func initProgressBar(maxTicks int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
