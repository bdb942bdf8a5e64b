package engine

import (
	"iter"
	"time"

	"backtester/types"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var hundred = decimal.NewFromInt(100)

// Portfolio owns the cash balance, the position book, the order ledger and
// the valuation history of one backtest session. It is not safe for
// concurrent use, see SyncPortfolio.
type Portfolio struct {
	initialCapital decimal.Decimal
	cash           decimal.Decimal
	book           *positionBook
	ledger         *orderLedger
	history        *btree.BTreeG[types.ValuationRecord]
	clock          func() time.Time
	log            logrus.FieldLogger
}

type PortfolioOption func(*Portfolio)

// WithClock sets the time source used for fill times.
func WithClock(clock func() time.Time) PortfolioOption {
	return func(p *Portfolio) {
		p.clock = clock
	}
}

func WithLogger(log logrus.FieldLogger) PortfolioOption {
	return func(p *Portfolio) {
		p.log = log
	}
}

func NewPortfolio(initialCapital decimal.Decimal, opts ...PortfolioOption) (*Portfolio, error) {
	if !initialCapital.IsPositive() {
		return nil, ErrInvalidCapital
	}
	p := &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		book:           newPositionBook(),
		ledger:         newOrderLedger(),
		history: btree.NewG(2, func(a, b types.ValuationRecord) bool {
			return a.Time.Before(b.Time)
		}),
		clock: time.Now,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Portfolio) InitialCapital() decimal.Decimal { return p.initialCapital }
func (p *Portfolio) Cash() decimal.Decimal           { return p.cash }

// SubmitOrder stores an order in the ledger without executing it.
func (p *Portfolio) SubmitOrder(order *Order) error {
	return p.ledger.submit(order)
}

// Execute fills order at price when its rule fires. It returns false with no
// state change when the rule is not met or the order is already filled. A
// long fill that would drive cash negative returns *InsufficientCashError and
// leaves both the order and the portfolio untouched.
func (p *Portfolio) Execute(order *Order, price decimal.Decimal) (bool, error) {
	if !order.Triggers(price) {
		return false, nil
	}

	notional := order.Quantity().Mul(price)
	newCash := p.cash
	switch order.Direction() {
	case types.DirectionLong:
		if notional.GreaterThan(p.cash) {
			return false, &InsufficientCashError{
				Symbol:    order.Symbol(),
				Required:  notional,
				Available: p.cash,
			}
		}
		newCash = p.cash.Sub(notional)
	case types.DirectionShort:
		newCash = p.cash.Add(notional)
	default:
		return false, ErrUnknownDirection
	}

	if !order.Evaluate(price, p.clock()) {
		return false, nil
	}
	p.cash = newCash
	if err := p.book.applyFill(order.Symbol(), order.Direction(), order.Quantity(), price); err != nil {
		return false, err
	}
	p.ledger.recordFill(order)

	p.log.WithFields(logrus.Fields{
		"order_id":  order.ID(),
		"symbol":    order.Symbol(),
		"type":      order.Kind().Type,
		"direction": order.Direction(),
		"quantity":  order.Quantity(),
		"price":     price,
	}).Debug("order filled")
	return true, nil
}

// PendingOrders yields unfilled orders in submission order.
func (p *Portfolio) PendingOrders() iter.Seq[*Order] {
	return p.ledger.pending()
}

func (p *Portfolio) PendingOrdersFor(symbol string) iter.Seq[*Order] {
	return p.ledger.pendingFor(symbol)
}

// SweepPending tries every pending order whose symbol is quoted and returns
// the orders that filled, in ledger order. A failing order is logged and
// skipped; the remaining orders are still evaluated.
func (p *Portfolio) SweepPending(prices map[string]decimal.Decimal) []*Order {
	var filled []*Order
	for order := range p.ledger.pending() {
		price, ok := prices[order.Symbol()]
		if !ok {
			continue
		}
		done, err := p.Execute(order, price)
		if err != nil {
			p.log.WithFields(logrus.Fields{
				"order_id": order.ID(),
				"symbol":   order.Symbol(),
				"price":    price,
			}).WithError(err).Warn("pending order skipped")
			continue
		}
		if done {
			filled = append(filled, order)
		}
	}
	return filled
}

// Revalue marks positions to market and records the total value at t. A
// record already stored at t is replaced.
func (p *Portfolio) Revalue(prices map[string]decimal.Decimal, t time.Time) types.ValuationRecord {
	positionsValue := p.book.revalue(prices)
	total := p.cash.Add(positionsValue)
	rec := types.ValuationRecord{
		Time:           t,
		TotalValue:     total,
		Cash:           p.cash,
		PositionsValue: positionsValue,
		ReturnPct:      p.returnPct(total),
	}
	p.history.ReplaceOrInsert(rec)
	return rec
}

func (p *Portfolio) returnPct(total decimal.Decimal) decimal.Decimal {
	return total.Div(p.initialCapital).Sub(decimal.NewFromInt(1)).Mul(hundred)
}

// History returns the valuation records in chronological order.
func (p *Portfolio) History() []types.ValuationRecord {
	out := make([]types.ValuationRecord, 0, p.history.Len())
	p.history.Ascend(func(rec types.ValuationRecord) bool {
		out = append(out, rec)
		return true
	})
	return out
}

// Summary projects the latest valuation. It is the zero value until Revalue
// has been called once.
func (p *Portfolio) Summary() types.Summary {
	last, ok := p.history.Max()
	if !ok {
		return types.Summary{}
	}
	return types.Summary{
		InitialCapital:     p.initialCapital,
		Cash:               p.cash,
		TotalValue:         last.TotalValue,
		TotalReturnPct:     p.returnPct(last.TotalValue),
		PositionsCount:     p.book.len(),
		OpenOrdersCount:    p.ledger.openCount(),
		FilledOrdersCount:  p.ledger.filledCount(),
		UnrealizedPnLTotal: p.book.unrealizedPnL(),
	}
}

func (p *Portfolio) PositionAnalysis() []types.PositionAnalysis {
	total := p.cash.Add(p.book.marketValue())
	snaps := p.book.snapshots()
	out := make([]types.PositionAnalysis, 0, len(snaps))
	for _, pos := range snaps {
		a := types.PositionAnalysis{
			PositionSnapshot: pos,
			WeightPct:        decimal.Zero,
			CostBasis:        pos.Quantity.Mul(pos.AvgEntryPrice),
			PnLPct:           decimal.Zero,
		}
		if total.IsPositive() {
			a.WeightPct = pos.MarketValue.Div(total).Mul(hundred)
		}
		if !a.CostBasis.IsZero() {
			a.PnLPct = pos.UnrealizedPnL.Div(a.CostBasis.Abs()).Mul(hundred)
		}
		out = append(out, a)
	}
	return out
}

// Position returns a copy of the position held in symbol.
func (p *Portfolio) Position(symbol string) (types.PositionSnapshot, bool) {
	pos, ok := p.book.get(symbol)
	if !ok {
		return types.PositionSnapshot{}, false
	}
	return pos.snapshot(), true
}

func (p *Portfolio) Positions() []types.PositionSnapshot { return p.book.snapshots() }
func (p *Portfolio) OpenOrders() []types.OpenOrder       { return p.ledger.openOrders() }
func (p *Portfolio) FilledOrders() []types.FilledOrder   { return p.ledger.filledOrders() }

func (p *Portfolio) GetPortfolioSnapshot(curTime time.Time) types.PortfolioView {
	view := types.PortfolioView{
		Cash:      p.cash,
		Positions: make(map[string]types.PositionSnapshot, p.book.len()),
		Time:      curTime,
	}
	for _, pos := range p.book.snapshots() {
		view.Positions[pos.Symbol] = pos
	}
	return view
}
