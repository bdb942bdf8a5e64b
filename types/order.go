package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSnapshot is a read-only projection of an order and its fill state.
type OrderSnapshot struct {
	ID            uuid.UUID
	Symbol        string
	Type          OrderType
	Direction     Direction
	Quantity      decimal.Decimal
	TriggerPrice  decimal.NullDecimal
	OpenPrice     decimal.NullDecimal
	OpenTime      time.Time
	Status        OrderStatus
	StopTriggered bool
	FillPrice     decimal.NullDecimal
	FillTime      time.Time
	PnL           decimal.NullDecimal
}

// OpenOrder is one row of the open orders table.
type OpenOrder struct {
	ID         uuid.UUID
	Symbol     string
	Type       OrderType
	Direction  Direction
	Quantity   decimal.Decimal
	OpenPrice  decimal.NullDecimal
	OpenTime   time.Time
	LimitPrice decimal.NullDecimal
	StopPrice  decimal.NullDecimal
	Filled     bool
}

// FilledOrder is one execution in the filled orders table.
type FilledOrder struct {
	ID        uuid.UUID
	Symbol    string
	Type      OrderType
	Direction Direction
	Quantity  decimal.Decimal
	OpenPrice decimal.NullDecimal
	OpenTime  time.Time
	FillPrice decimal.Decimal
	FillTime  time.Time
	PnL       decimal.Decimal
}
