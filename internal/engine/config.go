package engine

import (
	"time"

	"backtester/types"

	"github.com/shopspring/decimal"
)

type InstrumentConfig struct {
	ticker   string
	interval types.Interval
	start    time.Time
	end      time.Time
	candles  []types.Candle
}

func NewInstrumentConfigs(instruments ...*InstrumentConfig) []*InstrumentConfig {
	return instruments
}

func NewInstrumentConfig(ticker string, interval types.Interval, start, end time.Time) *InstrumentConfig {
	return &InstrumentConfig{
		ticker:   ticker,
		interval: interval,
		start:    start,
		end:      end,
	}
}

func (c *InstrumentConfig) Ticker() string { return c.ticker }

type PortfolioConfig struct {
	initialCash decimal.Decimal
}

func NewPortfolioConfig(initialCash decimal.Decimal) *PortfolioConfig {
	return &PortfolioConfig{
		initialCash: initialCash,
	}
}

type ReportingConfig struct {
	sharpeRiskFreeRate decimal.Decimal
	currency           string
	tradesFile         string
	historyFile        string
}

// NewReportingConfig configures the final report. Empty file paths disable
// the matching CSV output.
func NewReportingConfig(sharpeRiskFreeRate decimal.Decimal, currency, tradesFile, historyFile string) *ReportingConfig {
	return &ReportingConfig{
		sharpeRiskFreeRate: sharpeRiskFreeRate,
		currency:           currency,
		tradesFile:         tradesFile,
		historyFile:        historyFile,
	}
}
