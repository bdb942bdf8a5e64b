package engine

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"backtester/types"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

type Report struct {
	// Meta / period info
	StartDate   time.Time
	TotalPeriod time.Duration
	TotalTrades int
	TotalFills  int

	// Absolute performance
	FinalValue           decimal.Decimal
	TotalReturnPct       decimal.Decimal
	NetProfit            decimal.Decimal
	NetAvgProfitPerTrade decimal.Decimal
	UnrealizedPnL        decimal.Decimal
	OrderPnL             decimal.Decimal
	CAGR                 decimal.Decimal

	// Trade-level distribution metrics
	AvgWin       decimal.Decimal
	AvgLoss      decimal.Decimal
	ProfitFactor decimal.Decimal

	// Drawdown & loss streak metrics
	MaxDrawdown          decimal.Decimal
	MaxDrawdownPercent   decimal.Decimal
	MaxDrawdownDays      time.Duration
	MaxConsecutiveLosses int

	// Risk-adjusted metrics
	SharpeRatio decimal.Decimal
}

// trade is a round trip on one symbol: an opening fill and, once closed, the
// fill on the opposite side.
type trade struct {
	open  *types.FilledOrder
	close *types.FilledOrder
}

func (t trade) closed() bool {
	return t.open != nil && t.close != nil
}

// grossProfit is the cash flow of a closed trade: proceeds of the short leg
// minus the cost of the long leg.
func (t trade) grossProfit() decimal.Decimal {
	profit := decimal.Zero
	for _, leg := range []*types.FilledOrder{t.open, t.close} {
		if leg == nil {
			continue
		}
		value := leg.Quantity.Mul(leg.FillPrice)
		switch leg.Direction {
		case types.DirectionLong:
			profit = profit.Sub(value)
		case types.DirectionShort:
			profit = profit.Add(value)
		}
	}
	return profit
}

func (t trade) closeTime() time.Time {
	if t.close != nil {
		return t.close.FillTime
	}
	if t.open != nil {
		return t.open.FillTime
	}
	return time.Time{}
}

func (e *Engine) printReport(w io.Writer, report *Report) {
	cur := e.reportingConfig.currency
	fmt.Fprintln(w, "===== Trading Report =====")
	fmt.Fprintf(w, "Start Date:            %s\n", report.StartDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Total Period:          %d days\n", report.TotalPeriod/(24*time.Hour))
	fmt.Fprintf(w, "Total Trades:          %d\n", report.TotalTrades)
	fmt.Fprintf(w, "Total Fills:           %d\n", report.TotalFills)

	fmt.Fprintln(w, "\n-- Absolute Performance --")
	fmt.Fprintf(w, "Final Value:           %s\n", formatMoney(report.FinalValue, cur))
	fmt.Fprintf(w, "Total Return %%:        %s\n", report.TotalReturnPct.StringFixed(2))
	fmt.Fprintf(w, "Net Profit:            %s\n", formatMoney(report.NetProfit, cur))
	fmt.Fprintf(w, "Avg Profit/Trade:      %s\n", formatMoney(report.NetAvgProfitPerTrade, cur))
	fmt.Fprintf(w, "Unrealized P&L:        %s\n", formatMoney(report.UnrealizedPnL, cur))
	fmt.Fprintf(w, "Order P&L:             %s\n", formatMoney(report.OrderPnL, cur))
	fmt.Fprintf(w, "CAGR:                  %s\n", report.CAGR.StringFixed(4))

	fmt.Fprintln(w, "\n-- Trade-Level Metrics --")
	fmt.Fprintf(w, "Avg Win:               %s\n", formatMoney(report.AvgWin, cur))
	fmt.Fprintf(w, "Avg Loss:              %s\n", formatMoney(report.AvgLoss, cur))
	fmt.Fprintf(w, "Profit Factor:         %s\n", report.ProfitFactor.StringFixed(2))

	fmt.Fprintln(w, "\n-- Drawdown Metrics --")
	fmt.Fprintf(w, "Max Drawdown:          %s\n", formatMoney(report.MaxDrawdown, cur))
	fmt.Fprintf(w, "Max Drawdown %%:        %s\n", report.MaxDrawdownPercent.Mul(hundred).StringFixed(2))
	fmt.Fprintf(w, "Max Drawdown Days:     %d\n", report.MaxDrawdownDays/(24*time.Hour))
	fmt.Fprintf(w, "Max Consecutive Losses:%d\n", report.MaxConsecutiveLosses)

	fmt.Fprintln(w, "\n-- Risk-Adjusted Metrics --")
	fmt.Fprintf(w, "Sharpe Ratio:          %s\n", report.SharpeRatio.StringFixed(2))

	fmt.Fprintln(w, "==========================")
}

// formatMoney renders amount with the currency's symbol and fraction digits.
func formatMoney(amount decimal.Decimal, currency string) string {
	// money.New never returns a nil currency, even for unknown codes.
	cur := *money.New(0, currency).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

func (e *Engine) generateReport(start, end time.Time, results *Portfolio) *Report {
	fills := results.FilledOrders()
	trades := fillsToTrades(fills)
	history := results.History()
	summary := results.Summary()

	report := &Report{}
	report.StartDate = start
	report.TotalPeriod = end.Sub(start).Truncate(time.Hour * 24)
	report.TotalTrades = len(trades)
	report.TotalFills = len(fills)
	report.FinalValue = summary.TotalValue
	report.TotalReturnPct = summary.TotalReturnPct
	report.UnrealizedPnL = summary.UnrealizedPnLTotal
	for _, f := range fills {
		report.OrderPnL = report.OrderPnL.Add(f.PnL)
	}

	var wg sync.WaitGroup
	wg.Add(7)
	go func() {
		report.NetProfit = calcNetProfit(trades, &wg)
	}()
	go func() {
		report.NetAvgProfitPerTrade = calcNetAvgProfitPerTrade(trades, &wg)
	}()
	go func() {
		report.AvgWin, report.AvgLoss, report.ProfitFactor = calcWinLossPerTrade(trades, &wg)
	}()
	go func() {
		report.CAGR = calcCAGR(history, &wg)
	}()
	go func() {
		report.MaxDrawdown, report.MaxDrawdownPercent, report.MaxDrawdownDays = calcDrawdownMetrics(history, &wg)
	}()
	go func() {
		report.MaxConsecutiveLosses = calcMaxConsecutiveLosses(trades, &wg)
	}()
	go func() {
		report.SharpeRatio = calcSharpeRatio(history, e.reportingConfig.sharpeRiskFreeRate, &wg)
	}()
	wg.Wait()

	return report
}

func calcNetProfit(trades []trade, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()

	net := decimal.Zero
	for _, tr := range trades {
		// Only realize PnL when the trade has both sides
		if tr.closed() {
			net = net.Add(tr.grossProfit())
		}
	}
	return net
}

func calcNetAvgProfitPerTrade(trades []trade, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()

	net := decimal.Zero
	realizedTrades := 0
	for _, tr := range trades {
		if tr.closed() {
			net = net.Add(tr.grossProfit())
			realizedTrades++
		}
	}

	if realizedTrades == 0 {
		return decimal.Zero
	}
	return net.Div(decimal.NewFromInt(int64(realizedTrades)))
}

func calcCAGR(history []types.ValuationRecord, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()
	if len(history) < 2 {
		return decimal.Zero
	}

	startRec := history[0]
	endRec := history[len(history)-1]

	// If starting value is <= 0, CAGR is not well-defined
	if !startRec.TotalValue.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}

	// time difference in years (using 365.25 days to account for leap years)
	duration := endRec.Time.Sub(startRec.Time)
	if duration <= 0 {
		return decimal.Zero
	}
	years := duration.Hours() / (24.0 * 365.25)

	ratio := endRec.TotalValue.Div(startRec.TotalValue)
	if !ratio.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}

	cagrFloat := math.Pow(ratio.InexactFloat64(), 1.0/years) - 1.0
	return decimal.NewFromFloat(cagrFloat)
}

// calcWinLossPerTrade returns the average win, the average absolute loss and
// the profit factor (gross wins over gross losses) of closed trades.
func calcWinLossPerTrade(trades []trade, wg *sync.WaitGroup) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	defer wg.Done()

	sumWins := decimal.Zero
	sumLosses := decimal.Zero // store absolute loss amounts
	winCount := 0
	lossCount := 0

	for _, tr := range trades {
		if !tr.closed() {
			continue
		}
		net := tr.grossProfit()
		switch {
		case net.GreaterThan(decimal.Zero):
			sumWins = sumWins.Add(net)
			winCount++
		case net.LessThan(decimal.Zero):
			sumLosses = sumLosses.Add(net.Abs())
			lossCount++
		}
	}

	avgWin := decimal.Zero
	avgLoss := decimal.Zero
	profitFactor := decimal.Zero

	if winCount > 0 {
		avgWin = sumWins.Div(decimal.NewFromInt(int64(winCount)))
	}
	if lossCount > 0 {
		avgLoss = sumLosses.Div(decimal.NewFromInt(int64(lossCount)))
		profitFactor = sumWins.Div(sumLosses)
	}

	return avgWin, avgLoss, profitFactor
}

func calcDrawdownMetrics(
	history []types.ValuationRecord,
	wg *sync.WaitGroup,
) (decimal.Decimal, decimal.Decimal, time.Duration) {
	defer wg.Done()

	if len(history) == 0 {
		return decimal.Zero, decimal.Zero, 0
	}

	// History is chronological.
	peak := decimal.Zero
	var peakTime time.Time

	maxDD := decimal.Zero
	maxDDPct := decimal.Zero
	var maxDDDuration time.Duration

	for i, rec := range history {
		equity := rec.TotalValue

		if i == 0 || equity.GreaterThan(peak) || peak.IsZero() {
			peak = equity
			peakTime = rec.Time
		}

		if peak.GreaterThan(decimal.Zero) {
			dd := peak.Sub(equity)

			if dd.GreaterThan(maxDD) {
				maxDD = dd
				maxDDPct = dd.Div(peak)
				maxDDDuration = rec.Time.Sub(peakTime)
			}
		}
	}

	return maxDD, maxDDPct, maxDDDuration
}

func calcMaxConsecutiveLosses(trades []trade, wg *sync.WaitGroup) int {
	defer wg.Done()

	var closed []trade
	for _, tr := range trades {
		if tr.closed() {
			closed = append(closed, tr)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].closeTime().Before(closed[j].closeTime())
	})

	maxLossStreak := 0
	currentStreak := 0

	for _, tr := range closed {
		if tr.grossProfit().LessThan(decimal.Zero) {
			currentStreak++
			if currentStreak > maxLossStreak {
				maxLossStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}

	return maxLossStreak
}

func calcSharpeRatio(
	history []types.ValuationRecord,
	annualRiskFree decimal.Decimal,
	wg *sync.WaitGroup,
) decimal.Decimal {
	defer wg.Done()
	monthlyReturns := getMonthlyReturns(history)
	if len(monthlyReturns) < 2 {
		// Need at least 2 months to compute stddev
		return decimal.Zero
	}

	// rf_monthly = (1 + rf_annual)^(1/12) - 1
	rfMonthly := math.Pow(1.0+annualRiskFree.InexactFloat64(), 1.0/12.0) - 1.0

	excess := make([]float64, 0, len(monthlyReturns))
	for _, r := range monthlyReturns {
		excess = append(excess, r.InexactFloat64()-rfMonthly)
	}

	var sum float64
	for _, x := range excess {
		sum += x
	}
	meanMonthlyExcess := sum / float64(len(excess))

	// Sample standard deviation of monthly excess returns
	var varianceSum float64
	for _, x := range excess {
		diff := x - meanMonthlyExcess
		varianceSum += diff * diff
	}
	stdMonthly := math.Sqrt(varianceSum / float64(len(excess)-1))
	if stdMonthly == 0 {
		return decimal.Zero
	}

	// Monthly Sharpe, then annualize by sqrt(12)
	sharpeAnnual := meanMonthlyExcess / stdMonthly * math.Sqrt(12.0)
	return decimal.NewFromFloat(sharpeAnnual)
}

// getMonthlyReturns computes returns between consecutive month-end values of
// a chronological history.
func getMonthlyReturns(history []types.ValuationRecord) []decimal.Decimal {
	if len(history) == 0 {
		return nil
	}

	var monthEnds []decimal.Decimal
	var lastYear int
	var lastMonth time.Month
	for i, rec := range history {
		y, m, _ := rec.Time.Date()
		if i > 0 && y == lastYear && m == lastMonth {
			monthEnds[len(monthEnds)-1] = rec.TotalValue
			continue
		}
		monthEnds = append(monthEnds, rec.TotalValue)
		lastYear, lastMonth = y, m
	}

	if len(monthEnds) < 2 {
		return nil
	}

	returns := make([]decimal.Decimal, 0, len(monthEnds)-1)
	prev := monthEnds[0]

	for _, curr := range monthEnds[1:] {
		if !prev.GreaterThan(decimal.Zero) {
			prev = curr
			continue
		}
		returns = append(returns, curr.Div(prev).Sub(decimal.NewFromInt(1)))
		prev = curr
	}

	return returns
}

// fillsToTrades groups fills per symbol and pairs each opening fill with the
// next fill on the opposite side. A trailing unmatched fill is an open trade.
func fillsToTrades(fills []types.FilledOrder) []trade {
	bySymbol := make(map[string][]int)
	var symbols []string
	for i, f := range fills {
		if _, ok := bySymbol[f.Symbol]; !ok {
			symbols = append(symbols, f.Symbol)
		}
		bySymbol[f.Symbol] = append(bySymbol[f.Symbol], i)
	}

	var trades []trade
	for _, sym := range symbols {
		var cur *trade
		for _, idx := range bySymbol[sym] {
			f := &fills[idx]
			if cur == nil {
				cur = &trade{open: f}
				continue
			}
			if f.Direction == cur.open.Direction {
				// Same side again: the previous entry stays an open trade.
				trades = append(trades, *cur)
				cur = &trade{open: f}
				continue
			}
			cur.close = f
			trades = append(trades, *cur)
			cur = nil
		}
		if cur != nil {
			trades = append(trades, *cur)
		}
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].open.FillTime.Before(trades[j].open.FillTime)
	})
	return trades
}
