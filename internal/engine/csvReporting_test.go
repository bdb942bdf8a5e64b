package engine

import (
	"bytes"
	"encoding/csv"
	"errors"
	"reflect"
	"testing"
	"time"

	"backtester/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestWriteFilledOrdersCSV(t *testing.T) {
	id := uuid.MustParse("6f1c3a0e-3d6b-4b8f-9a55-0c0e5c1b2a77")
	openTime := time.Date(2024, time.January, 2, 15, 30, 0, 0, time.UTC)
	fillTime := openTime.Add(24 * time.Hour)
	fills := []types.FilledOrder{
		{
			ID:        id,
			Symbol:    "AAPL",
			Type:      types.TypeLimit,
			Direction: types.DirectionShort,
			Quantity:  dec("10"),
			OpenPrice: decimal.NewNullDecimal(dec("150")),
			OpenTime:  openTime,
			FillPrice: dec("155.5"),
			FillTime:  fillTime,
			PnL:       dec("55"),
		},
		{
			ID:        id,
			Symbol:    "MSFT",
			Type:      types.TypeMarket,
			Direction: types.DirectionLong,
			Quantity:  dec("1"),
			OpenTime:  openTime,
			FillPrice: dec("300"),
			FillTime:  fillTime,
			PnL:       dec("-300"),
		},
	}

	var buf bytes.Buffer
	if err := writeFilledOrdersCSV(&buf, fills); err != nil {
		t.Fatalf("writeFilledOrdersCSV() error = %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	want := [][]string{
		{"order_id", "symbol", "order_type", "direction", "quantity", "open_price", "open_time", "fill_price", "fill_time", "pnl"},
		{id.String(), "AAPL", "LIMIT", "SHORT", "10", "150", "2024-01-02T15:30:00Z", "155.5", "2024-01-03T15:30:00Z", "55"},
		{id.String(), "MSFT", "MARKET", "LONG", "1", "", "2024-01-02T15:30:00Z", "300", "2024-01-03T15:30:00Z", "-300"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("writeFilledOrdersCSV() rows =\n%v\nwant\n%v", rows, want)
	}
}

func TestWriteHistoryCSV(t *testing.T) {
	at := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	history := []types.ValuationRecord{
		{Time: at, TotalValue: dec("10100"), Cash: dec("8500"), PositionsValue: dec("1600"), ReturnPct: dec("1")},
	}

	var buf bytes.Buffer
	if err := writeHistoryCSV(&buf, history); err != nil {
		t.Fatalf("writeHistoryCSV() error = %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{
		{"timestamp", "total_value", "cash", "positions_value", "returns"},
		{"2024-01-02T00:00:00Z", "10100", "8500", "1600", "1.0000"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("writeHistoryCSV() rows = %v, want %v", rows, want)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSV_PropagatesWriterErrors(t *testing.T) {
	if err := writeFilledOrdersCSV(failingWriter{}, nil); err == nil {
		t.Errorf("writeFilledOrdersCSV() error = nil, want failure")
	}
	if err := writeHistoryCSV(failingWriter{}, nil); err == nil {
		t.Errorf("writeHistoryCSV() error = nil, want failure")
	}
}
