package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"backtester/types"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds the contents of config.ini.
type Config struct {
	Data     DataConfig
	Backtest BacktestConfig
	Strategy StrategyConfig
	Report   ReportConfig
	LogLevel logrus.Level
}

type DataConfig struct {
	Source      string
	Dir         string
	DatabaseURL string
	Interval    types.Interval
}

type BacktestConfig struct {
	Tickers     []string
	Start       time.Time
	End         time.Time
	InitialCash decimal.Decimal
}

type StrategyConfig struct {
	Lookback        int
	AtrPeriod       int
	AtrMultiplier   decimal.Decimal
	PositionPercent decimal.Decimal
}

type ReportConfig struct {
	Currency     string
	RiskFreeRate decimal.Decimal
	TradesFile   string
	HistoryFile  string
}

// Default returns the settings used for every key config.ini leaves out.
func Default() Config {
	return Config{
		Data: DataConfig{
			Source:   SourceCSV,
			Dir:      "data",
			Interval: types.Day,
		},
		Backtest: BacktestConfig{
			Tickers:     []string{"AAPL"},
			Start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			InitialCash: decimal.NewFromInt(100000),
		},
		Strategy: StrategyConfig{
			Lookback:        20,
			AtrPeriod:       20,
			AtrMultiplier:   decimal.NewFromInt(2),
			PositionPercent: decimal.RequireFromString("0.1"),
		},
		Report: ReportConfig{
			Currency:     "USD",
			RiskFreeRate: decimal.Zero,
		},
		LogLevel: logrus.InfoLevel,
	}
}

// Load reads an ini source, a file path or raw bytes, on top of Default
// and validates the result.
func Load(source interface{}) (*Config, error) {
	f, err := ini.Load(source)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := Default()

	data := f.Section("data")
	cfg.Data.Source = strings.ToLower(data.Key("source").MustString(cfg.Data.Source))
	cfg.Data.Dir = data.Key("dir").MustString(cfg.Data.Dir)
	cfg.Data.DatabaseURL = data.Key("database_url").String()
	if v := data.Key("interval").String(); v != "" {
		interval, ok := types.ConvertInterval[v]
		if !ok {
			return nil, fmt.Errorf("%w: data.interval %q", ErrInvalidConfig, v)
		}
		cfg.Data.Interval = interval
	}

	bt := f.Section("backtest")
	if bt.HasKey("tickers") {
		cfg.Backtest.Tickers = nil
		for _, t := range bt.Key("tickers").Strings(",") {
			cfg.Backtest.Tickers = append(cfg.Backtest.Tickers, strings.ToUpper(t))
		}
	}
	if cfg.Backtest.Start, err = timeKey(bt, "start", cfg.Backtest.Start); err != nil {
		return nil, err
	}
	if cfg.Backtest.End, err = timeKey(bt, "end", cfg.Backtest.End); err != nil {
		return nil, err
	}
	if cfg.Backtest.InitialCash, err = decimalKey(bt, "initial_cash", cfg.Backtest.InitialCash); err != nil {
		return nil, err
	}

	st := f.Section("strategy")
	cfg.Strategy.Lookback = st.Key("lookback").MustInt(cfg.Strategy.Lookback)
	cfg.Strategy.AtrPeriod = st.Key("atr_period").MustInt(cfg.Strategy.AtrPeriod)
	if cfg.Strategy.AtrMultiplier, err = decimalKey(st, "atr_multiplier", cfg.Strategy.AtrMultiplier); err != nil {
		return nil, err
	}
	if cfg.Strategy.PositionPercent, err = decimalKey(st, "position_percent", cfg.Strategy.PositionPercent); err != nil {
		return nil, err
	}

	rp := f.Section("report")
	cfg.Report.Currency = strings.ToUpper(rp.Key("currency").MustString(cfg.Report.Currency))
	cfg.Report.TradesFile = rp.Key("trades_file").String()
	cfg.Report.HistoryFile = rp.Key("history_file").String()
	if cfg.Report.RiskFreeRate, err = decimalKey(rp, "risk_free_rate", cfg.Report.RiskFreeRate); err != nil {
		return nil, err
	}

	if v := f.Section("log").Key("level").String(); v != "" {
		lvl, err := logrus.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
		}
		cfg.LogLevel = lvl
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Data.Source {
	case SourceCSV:
		if c.Data.Dir == "" {
			return fmt.Errorf("%w: data.dir is required for the csv source", ErrInvalidConfig)
		}
	case SourcePostgres:
		if c.Data.DatabaseURL == "" {
			return fmt.Errorf("%w: data.database_url is required for the postgres source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown data.source %q", ErrInvalidConfig, c.Data.Source)
	}
	if len(c.Backtest.Tickers) == 0 {
		return fmt.Errorf("%w: backtest.tickers is empty", ErrInvalidConfig)
	}
	if !c.Backtest.End.After(c.Backtest.Start) {
		return fmt.Errorf("%w: backtest.end must be after backtest.start", ErrInvalidConfig)
	}
	if !c.Backtest.InitialCash.IsPositive() {
		return fmt.Errorf("%w: backtest.initial_cash must be positive", ErrInvalidConfig)
	}
	if c.Strategy.Lookback < 2 || c.Strategy.AtrPeriod < 1 {
		return fmt.Errorf("%w: strategy.lookback must be at least 2 and strategy.atr_period at least 1", ErrInvalidConfig)
	}
	if !c.Strategy.PositionPercent.IsPositive() || c.Strategy.PositionPercent.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: strategy.position_percent must be in (0, 1]", ErrInvalidConfig)
	}
	if c.Strategy.AtrMultiplier.IsNegative() {
		return fmt.Errorf("%w: strategy.atr_multiplier must not be negative", ErrInvalidConfig)
	}
	return nil
}

func timeKey(s *ini.Section, name string, def time.Time) (time.Time, error) {
	v := s.Key(name).String()
	if v == "" {
		return def, nil
	}
	t, err := dateparse.ParseIn(v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s.%s: %v", ErrInvalidConfig, s.Name(), name, err)
	}
	return t, nil
}

func decimalKey(s *ini.Section, name string, def decimal.Decimal) (decimal.Decimal, error) {
	v := s.Key(name).String()
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s.%s: %v", ErrInvalidConfig, s.Name(), name, err)
	}
	return d, nil
}
