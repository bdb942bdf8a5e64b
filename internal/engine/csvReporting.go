package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"backtester/types"

	"github.com/shopspring/decimal"
)

// writeFilledOrdersCSVFile writes the filled orders table to a CSV file at
// the given path.
func writeFilledOrdersCSVFile(path string, fills []types.FilledOrder) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	defer f.Close()

	return writeFilledOrdersCSV(f, fills)
}

// writeFilledOrdersCSV writes fills to any io.Writer as CSV.
func writeFilledOrdersCSV(w io.Writer, fills []types.FilledOrder) error {
	cw := csv.NewWriter(w)

	header := []string{
		"order_id",
		"symbol",
		"order_type",
		"direction",
		"quantity",
		"open_price",
		"open_time", // RFC3339
		"fill_price",
		"fill_time", // RFC3339
		"pnl",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, f := range fills {
		record := []string{
			f.ID.String(),
			f.Symbol,
			string(f.Type),
			string(f.Direction),
			f.Quantity.String(),
			nullString(f.OpenPrice),
			f.OpenTime.Format(time.RFC3339),
			f.FillPrice.String(),
			f.FillTime.Format(time.RFC3339),
			f.PnL.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func writeHistoryCSVFile(path string, history []types.ValuationRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create history file: %w", err)
	}
	defer f.Close()

	return writeHistoryCSV(f, history)
}

// writeHistoryCSV writes the valuation series as CSV, one row per timestamp.
func writeHistoryCSV(w io.Writer, history []types.ValuationRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"timestamp", "total_value", "cash", "positions_value", "returns"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range history {
		record := []string{
			rec.Time.Format(time.RFC3339),
			rec.TotalValue.String(),
			rec.Cash.String(),
			rec.PositionsValue.String(),
			rec.ReturnPct.StringFixed(4),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
