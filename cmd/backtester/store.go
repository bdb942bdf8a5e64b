package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"backtester/internal/config"
	"backtester/internal/logging"
	"backtester/internal/repository"
	"backtester/types"
)

type candleStore interface {
	GetAssetByTicker(ctx context.Context, ticker string) (*types.Asset, error)
	GetCandles(ctx context.Context, assetId int, ticker string, interval types.Interval, start, end time.Time) ([]types.Candle, error)
}

// loadConfig reads the -config file and sets up logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	logging.SetLogging(cfg.LogLevel, os.Stderr)
	return cfg, nil
}

// openStore returns the candle source named in the config and a func
// releasing it.
func openStore(ctx context.Context, cfg config.DataConfig) (candleStore, func(), error) {
	switch cfg.Source {
	case config.SourcePostgres:
		db, err := repository.NewDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case config.SourceCSV:
		return repository.NewCSVStore(cfg.Dir, cfg.Interval), func() {}, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown data source %q", config.ErrInvalidConfig, cfg.Source)
}
