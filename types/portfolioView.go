package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type PortfolioView struct {
	Cash      decimal.Decimal
	Positions map[string]PositionSnapshot
	Time      time.Time
}

type PositionSnapshot struct {
	Symbol        string
	Quantity      decimal.Decimal
	AvgEntryPrice decimal.Decimal
	LastPrice     decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// ValuationRecord is one point of the portfolio value time series.
type ValuationRecord struct {
	Time           time.Time
	TotalValue     decimal.Decimal
	Cash           decimal.Decimal
	PositionsValue decimal.Decimal
	ReturnPct      decimal.Decimal
}

type Summary struct {
	InitialCapital     decimal.Decimal
	Cash               decimal.Decimal
	TotalValue         decimal.Decimal
	TotalReturnPct     decimal.Decimal
	PositionsCount     int
	OpenOrdersCount    int
	FilledOrdersCount  int
	UnrealizedPnLTotal decimal.Decimal
}

type PositionAnalysis struct {
	PositionSnapshot
	WeightPct decimal.Decimal
	CostBasis decimal.Decimal
	PnLPct    decimal.Decimal
}
