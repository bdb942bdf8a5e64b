package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity     = errors.New("order quantity must be positive")
	ErrInvalidTriggerPrice = errors.New("order trigger price must be positive")
	ErrUnknownDirection    = errors.New("unknown order direction")
	ErrUnknownOrderType    = errors.New("unknown order type")
	ErrEmptySymbol         = errors.New("order symbol is empty")
	ErrInvalidCapital      = errors.New("initial capital must be positive")
	ErrInsufficientCash    = errors.New("insufficient cash")
	ErrDuplicateOrder      = errors.New("order already submitted")
	ErrOrderAlreadyFilled  = errors.New("order already filled")
)

// InsufficientCashError is returned when a long execution would drive cash
// negative. It matches ErrInsufficientCash with errors.Is.
type InsufficientCashError struct {
	Symbol    string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("insufficient cash for %s: required %s, available %s", e.Symbol, e.Required, e.Available)
}

func (e *InsufficientCashError) Is(target error) bool {
	return target == ErrInsufficientCash
}
