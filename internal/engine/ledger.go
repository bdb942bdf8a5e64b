package engine

import (
	"iter"

	"backtester/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type openOrderRow struct {
	order *Order
	row   types.OpenOrder
}

// orderLedger holds the open orders table (every submitted order) and the
// append-only filled orders table.
type orderLedger struct {
	open     []*openOrderRow
	filled   []types.FilledOrder
	byID     map[uuid.UUID]int
	bySymbol map[string][]int
}

func newOrderLedger() *orderLedger {
	return &orderLedger{
		byID:     make(map[uuid.UUID]int),
		bySymbol: make(map[string][]int),
	}
}

func (l *orderLedger) submit(order *Order) error {
	if _, ok := l.byID[order.ID()]; ok {
		return ErrDuplicateOrder
	}
	if order.Filled() {
		return ErrOrderAlreadyFilled
	}

	row := types.OpenOrder{
		ID:        order.ID(),
		Symbol:    order.Symbol(),
		Type:      order.kind.Type,
		Direction: order.Direction(),
		Quantity:  order.Quantity(),
		OpenPrice: order.openPrice,
		OpenTime:  order.openTime,
	}
	switch order.kind.Type {
	case types.TypeLimit:
		row.LimitPrice = decimal.NewNullDecimal(order.kind.Trigger)
	case types.TypeStop:
		row.StopPrice = decimal.NewNullDecimal(order.kind.Trigger)
	}

	idx := len(l.open)
	l.open = append(l.open, &openOrderRow{order: order, row: row})
	l.byID[order.ID()] = idx
	l.bySymbol[order.Symbol()] = append(l.bySymbol[order.Symbol()], idx)
	return nil
}

// pending yields unfilled open orders in submission order. Every call scans
// the current state again.
func (l *orderLedger) pending() iter.Seq[*Order] {
	return func(yield func(*Order) bool) {
		for i := 0; i < len(l.open); i++ {
			r := l.open[i]
			if r.row.Filled {
				continue
			}
			if !yield(r.order) {
				return
			}
		}
	}
}

func (l *orderLedger) pendingFor(symbol string) iter.Seq[*Order] {
	return func(yield func(*Order) bool) {
		for _, idx := range l.bySymbol[symbol] {
			r := l.open[idx]
			if r.row.Filled {
				continue
			}
			if !yield(r.order) {
				return
			}
		}
	}
}

// recordFill appends the fill to the filled orders table and flags the open
// row, if the order was ever submitted.
func (l *orderLedger) recordFill(order *Order) {
	l.filled = append(l.filled, order.filledOrder())
	if idx, ok := l.byID[order.ID()]; ok {
		l.open[idx].row.Filled = true
	}
}

func (l *orderLedger) openOrders() []types.OpenOrder {
	out := make([]types.OpenOrder, 0, len(l.open))
	for _, r := range l.open {
		out = append(out, r.row)
	}
	return out
}

func (l *orderLedger) filledOrders() []types.FilledOrder {
	return append([]types.FilledOrder(nil), l.filled...)
}

func (l *orderLedger) openCount() int {
	n := 0
	for _, r := range l.open {
		if !r.row.Filled {
			n++
		}
	}
	return n
}

func (l *orderLedger) filledCount() int {
	return len(l.filled)
}
