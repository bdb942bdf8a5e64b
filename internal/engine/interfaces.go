package engine

import (
	"context"
	"time"

	"backtester/types"
)

type dataStore interface {
	GetAssetByTicker(ctx context.Context, ticker string) (*types.Asset, error)
	GetCandles(ctx context.Context, assetId int, ticker string, interval types.Interval, start, end time.Time) ([]types.Candle, error)
}

type strategy interface {
	Init(api PortfolioApi) error
	OnCandle(candle types.Candle) []*Order
}

// PortfolioApi is the read-only view of the running backtest handed to
// strategies.
type PortfolioApi interface {
	GetPortfolioSnapshot() types.PortfolioView
	HasPendingOrders(ticker string) bool
}
