package types

type Direction string

type OrderType string

type OrderStatus string

const (
	OrderPending OrderStatus = "ORDER_PENDING"
	OrderFilled  OrderStatus = "ORDER_FILLED"

	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"

	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
	TypeStop   OrderType = "STOP"
)

// Sign returns +1 for long and -1 for short. Unknown directions return 0.
func (d Direction) Sign() int64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	}
	return 0
}
