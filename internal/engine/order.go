package engine

import (
	"time"

	"backtester/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the trigger rule of an order. Market orders carry no trigger price.
type Kind struct {
	Type    types.OrderType
	Trigger decimal.Decimal
}

func Market() Kind { return Kind{Type: types.TypeMarket} }

func Limit(price decimal.Decimal) Kind { return Kind{Type: types.TypeLimit, Trigger: price} }

func Stop(price decimal.Decimal) Kind { return Kind{Type: types.TypeStop, Trigger: price} }

type Order struct {
	id        uuid.UUID
	symbol    string
	kind      Kind
	direction types.Direction
	quantity  decimal.Decimal
	openPrice decimal.NullDecimal
	openTime  time.Time

	filled        bool
	stopTriggered bool
	fillPrice     decimal.Decimal
	fillTime      time.Time
	pnl           decimal.Decimal
}

type OrderOption func(*Order)

// WithOpenPrice sets the reference price used as the P&L baseline.
func WithOpenPrice(price decimal.Decimal) OrderOption {
	return func(o *Order) {
		o.openPrice = decimal.NewNullDecimal(price)
	}
}

func WithOpenTime(t time.Time) OrderOption {
	return func(o *Order) {
		o.openTime = t
	}
}

func NewOrder(symbol string, kind Kind, direction types.Direction, quantity decimal.Decimal, opts ...OrderOption) (*Order, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	if !quantity.IsPositive() {
		return nil, ErrInvalidQuantity
	}
	if direction != types.DirectionLong && direction != types.DirectionShort {
		return nil, ErrUnknownDirection
	}
	switch kind.Type {
	case types.TypeMarket:
		kind.Trigger = decimal.Zero
	case types.TypeLimit, types.TypeStop:
		if !kind.Trigger.IsPositive() {
			return nil, ErrInvalidTriggerPrice
		}
	default:
		return nil, ErrUnknownOrderType
	}

	o := &Order{
		id:        uuid.New(),
		symbol:    symbol,
		kind:      kind,
		direction: direction,
		quantity:  quantity,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.openTime.IsZero() {
		o.openTime = time.Now()
	}
	return o, nil
}

func (o *Order) ID() uuid.UUID              { return o.id }
func (o *Order) Symbol() string             { return o.symbol }
func (o *Order) Kind() Kind                 { return o.kind }
func (o *Order) Direction() types.Direction { return o.direction }
func (o *Order) Quantity() decimal.Decimal  { return o.quantity }
func (o *Order) Filled() bool               { return o.filled }
func (o *Order) StopTriggered() bool        { return o.stopTriggered }
func (o *Order) FillPrice() decimal.Decimal { return o.fillPrice }
func (o *Order) FillTime() time.Time        { return o.fillTime }
func (o *Order) PnL() decimal.Decimal       { return o.pnl }

// Triggers reports whether the order would fill at price. It never mutates
// the order, and a filled order never triggers again.
func (o *Order) Triggers(price decimal.Decimal) bool {
	if o.filled {
		return false
	}
	switch o.kind.Type {
	case types.TypeMarket:
		return true
	case types.TypeLimit, types.TypeStop:
		// Long fills at or below the trigger, short at or above.
		if o.direction == types.DirectionLong {
			return price.LessThanOrEqual(o.kind.Trigger)
		}
		return price.GreaterThanOrEqual(o.kind.Trigger)
	}
	return false
}

// Evaluate fills the order at price when its rule fires. Calling it on a
// filled order is a no-op returning false.
func (o *Order) Evaluate(price decimal.Decimal, at time.Time) bool {
	if !o.Triggers(price) {
		return false
	}
	if o.kind.Type == types.TypeStop {
		o.stopTriggered = true
	}
	o.fill(price, at)
	return true
}

func (o *Order) fill(price decimal.Decimal, at time.Time) {
	// An unset open price is a zero baseline.
	open := o.openPrice.Decimal
	switch o.direction {
	case types.DirectionLong:
		o.pnl = open.Sub(price).Mul(o.quantity)
	case types.DirectionShort:
		o.pnl = price.Sub(open).Mul(o.quantity)
	}
	o.fillPrice = price
	o.fillTime = at
	o.filled = true
}

func (o *Order) Snapshot() types.OrderSnapshot {
	snap := types.OrderSnapshot{
		ID:            o.id,
		Symbol:        o.symbol,
		Type:          o.kind.Type,
		Direction:     o.direction,
		Quantity:      o.quantity,
		OpenPrice:     o.openPrice,
		OpenTime:      o.openTime,
		Status:        types.OrderPending,
		StopTriggered: o.stopTriggered,
	}
	if o.kind.Type != types.TypeMarket {
		snap.TriggerPrice = decimal.NewNullDecimal(o.kind.Trigger)
	}
	if o.filled {
		snap.Status = types.OrderFilled
		snap.FillPrice = decimal.NewNullDecimal(o.fillPrice)
		snap.FillTime = o.fillTime
		snap.PnL = decimal.NewNullDecimal(o.pnl)
	}
	return snap
}

func (o *Order) filledOrder() types.FilledOrder {
	return types.FilledOrder{
		ID:        o.id,
		Symbol:    o.symbol,
		Type:      o.kind.Type,
		Direction: o.direction,
		Quantity:  o.quantity,
		OpenPrice: o.openPrice,
		OpenTime:  o.openTime,
		FillPrice: o.fillPrice,
		FillTime:  o.fillTime,
		PnL:       o.pnl,
	}
}
