package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"backtester/types"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

// CSVStore serves candles from one CSV file per ticker, <dir>/<TICKER>.csv,
// holding bars of a single interval. The header needs Date (or Timestamp),
// Open, High, Low and Close columns; Volume is optional and any other column
// is ignored.
type CSVStore struct {
	dir      string
	interval types.Interval

	mu  sync.Mutex
	ids map[string]int
}

func NewCSVStore(dir string, interval types.Interval) *CSVStore {
	return &CSVStore{
		dir:      dir,
		interval: interval,
		ids:      make(map[string]int),
	}
}

func (s *CSVStore) path(ticker string) string {
	return filepath.Join(s.dir, strings.ToUpper(ticker)+".csv")
}

// GetAssetByTicker returns an asset for every ticker with a file. Ids are
// handed out in lookup order and stay stable for the life of the store.
func (s *CSVStore) GetAssetByTicker(ctx context.Context, ticker string) (*types.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(s.path(ticker))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ticker %s %w", ticker, ErrAssetNotFound)
		}
		return nil, err
	}

	s.mu.Lock()
	id, ok := s.ids[ticker]
	if !ok {
		id = len(s.ids) + 1
		s.ids[ticker] = id
	}
	s.mu.Unlock()

	return &types.Asset{
		Id:         id,
		Ticker:     ticker,
		Name:       ticker,
		Type:       types.AssetTypeStock,
		ModifiedAt: info.ModTime(),
	}, nil
}

// GetCandles returns the bars of ticker with timestamps in [start, end),
// sorted by time.
func (s *CSVStore) GetCandles(ctx context.Context, assetId int, ticker string, interval types.Interval, start, end time.Time) ([]types.Candle, error) {
	if interval != s.interval {
		return nil, ErrIntervalNotSupported
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(ticker))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ticker %s %w", ticker, ErrAssetNotFound)
		}
		return nil, err
	}
	defer f.Close()

	all, err := readCandles(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(f.Name()), err)
	}

	var candles []types.Candle
	for _, c := range all {
		if c.Timestamp.Before(start) || !c.Timestamp.Before(end) {
			continue
		}
		c.AssetId = assetId
		c.Ticker = ticker
		c.Interval = interval
		candles = append(candles, c)
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

func readCandles(r io.Reader) ([]types.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoCandles
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	timeCol, ok := cols["date"]
	if !ok {
		timeCol, ok = cols["timestamp"]
	}
	if !ok {
		return nil, errors.New("missing date column")
	}
	for _, name := range []string{"open", "high", "low", "close"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing %s column", name)
		}
	}
	volumeCol, hasVolume := cols["volume"]

	var candles []types.Candle
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseCSVTime(rec[timeCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c := types.Candle{Timestamp: ts, Volume: decimal.Zero}
		fields := []struct {
			name string
			dst  *decimal.Decimal
		}{
			{"open", &c.Open},
			{"high", &c.High},
			{"low", &c.Low},
			{"close", &c.Close},
		}
		for _, fld := range fields {
			v, err := decimal.NewFromString(strings.TrimSpace(rec[cols[fld.name]]))
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, fld.name, err)
			}
			*fld.dst = v
		}
		if hasVolume && strings.TrimSpace(rec[volumeCol]) != "" {
			v, err := decimal.NewFromString(strings.TrimSpace(rec[volumeCol]))
			if err != nil {
				return nil, fmt.Errorf("line %d volume: %w", line, err)
			}
			c.Volume = v
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseCSVTime(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q: %w", s, err)
	}
	return t.UTC(), nil
}
