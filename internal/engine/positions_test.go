package engine

import (
	"errors"
	"testing"

	"backtester/types"

	"github.com/shopspring/decimal"
)

type fill struct {
	direction types.Direction
	qty       string
	price     string
}

func TestPositionBook_ApplyFill(t *testing.T) {
	tests := []struct {
		name    string
		fills   []fill
		wantQty string
		wantAvg string
	}{
		{
			name:    "open long",
			fills:   []fill{{types.DirectionLong, "10", "150"}},
			wantQty: "10",
			wantAvg: "150",
		},
		{
			name:    "open short",
			fills:   []fill{{types.DirectionShort, "4", "25"}},
			wantQty: "-4",
			wantAvg: "25",
		},
		{
			name: "add to long",
			fills: []fill{
				{types.DirectionLong, "10", "150"},
				{types.DirectionLong, "10", "160"},
			},
			wantQty: "20",
			wantAvg: "155",
		},
		{
			name: "uneven add to long",
			fills: []fill{
				{types.DirectionLong, "30", "10"},
				{types.DirectionLong, "10", "20"},
			},
			wantQty: "40",
			wantAvg: "12.5",
		},
		{
			name: "add to short",
			fills: []fill{
				{types.DirectionShort, "10", "100"},
				{types.DirectionShort, "30", "80"},
			},
			wantQty: "-40",
			wantAvg: "85",
		},
		{
			name: "close long to zero",
			fills: []fill{
				{types.DirectionLong, "10", "150"},
				{types.DirectionShort, "10", "160"},
			},
			wantQty: "0",
			wantAvg: "0",
		},
		{
			name: "reduce long blends the reducing fill",
			fills: []fill{
				{types.DirectionLong, "10", "100"},
				{types.DirectionShort, "5", "120"},
			},
			// (100*10 + 120*5) / 5
			wantQty: "5",
			wantAvg: "320",
		},
		{
			name: "flip long to larger short takes fill price",
			fills: []fill{
				{types.DirectionLong, "10", "100"},
				{types.DirectionShort, "25", "90"},
			},
			wantQty: "-15",
			wantAvg: "90",
		},
		{
			name: "flip long to smaller short keeps average",
			fills: []fill{
				{types.DirectionLong, "10", "100"},
				{types.DirectionShort, "15", "90"},
			},
			wantQty: "-5",
			wantAvg: "100",
		},
		{
			name: "flip short to long",
			fills: []fill{
				{types.DirectionShort, "5", "50"},
				{types.DirectionLong, "20", "40"},
			},
			wantQty: "15",
			wantAvg: "40",
		},
		{
			name: "reopen after flat",
			fills: []fill{
				{types.DirectionLong, "10", "150"},
				{types.DirectionShort, "10", "160"},
				{types.DirectionLong, "3", "170"},
			},
			wantQty: "3",
			wantAvg: "170",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := newPositionBook()
			for _, f := range tt.fills {
				if err := book.applyFill("AAPL", f.direction, dec(f.qty), dec(f.price)); err != nil {
					t.Fatalf("applyFill() error = %v", err)
				}
			}
			pos, ok := book.get("AAPL")
			if !ok {
				t.Fatalf("position missing")
			}
			if !pos.Quantity.Equal(dec(tt.wantQty)) {
				t.Errorf("Quantity = %s, want %s", pos.Quantity, tt.wantQty)
			}
			if !pos.AvgCost.Equal(dec(tt.wantAvg)) {
				t.Errorf("AvgCost = %s, want %s", pos.AvgCost, tt.wantAvg)
			}
			last := tt.fills[len(tt.fills)-1]
			if !pos.LastPrice.Equal(dec(last.price)) {
				t.Errorf("LastPrice = %s, want %s", pos.LastPrice, last.price)
			}
			if book.len() != 1 {
				t.Errorf("len() = %d, want 1", book.len())
			}
		})
	}
}

func TestPositionBook_ApplyFillUnknownDirection(t *testing.T) {
	book := newPositionBook()
	err := book.applyFill("AAPL", types.Direction("FLAT"), dec("1"), dec("1"))
	if !errors.Is(err, ErrUnknownDirection) {
		t.Errorf("applyFill() error = %v, want %v", err, ErrUnknownDirection)
	}
	if book.len() != 0 {
		t.Errorf("book should stay empty")
	}
}

func TestPositionBook_Revalue(t *testing.T) {
	book := newPositionBook()
	_ = book.applyFill("AAPL", types.DirectionLong, dec("10"), dec("150"))
	_ = book.applyFill("MSFT", types.DirectionShort, dec("2"), dec("300"))

	total := book.revalue(map[string]decimal.Decimal{"AAPL": dec("160")})
	// AAPL 10*160, MSFT keeps -2*300
	if !total.Equal(dec("1000")) {
		t.Errorf("revalue() = %s, want 1000", total)
	}

	aapl, _ := book.get("AAPL")
	if !aapl.UnrealizedPnL.Equal(dec("100")) || !aapl.MarketValue.Equal(dec("1600")) {
		t.Errorf("AAPL = %+v", aapl)
	}
	msft, _ := book.get("MSFT")
	if !msft.MarketValue.Equal(dec("-600")) || !msft.UnrealizedPnL.IsZero() {
		t.Errorf("unquoted MSFT changed: %+v", msft)
	}

	total = book.revalue(map[string]decimal.Decimal{"MSFT": dec("280"), "TSLA": dec("1")})
	if !total.Equal(dec("1040")) {
		t.Errorf("revalue() = %s, want 1040", total)
	}
	if !msft.UnrealizedPnL.Equal(dec("40")) {
		t.Errorf("short UnrealizedPnL = %s, want 40", msft.UnrealizedPnL)
	}
	if _, ok := book.get("TSLA"); ok {
		t.Errorf("revalue() must not open positions")
	}
	if !book.marketValue().Equal(total) {
		t.Errorf("marketValue() = %s, want %s", book.marketValue(), total)
	}
	if !book.unrealizedPnL().Equal(dec("140")) {
		t.Errorf("unrealizedPnL() = %s, want 140", book.unrealizedPnL())
	}
}

func TestPositionBook_SnapshotsKeepFirstFillOrder(t *testing.T) {
	book := newPositionBook()
	for _, sym := range []string{"MSFT", "AAPL", "MSFT", "TSLA"} {
		_ = book.applyFill(sym, types.DirectionLong, dec("1"), dec("10"))
	}
	snaps := book.snapshots()
	want := []string{"MSFT", "AAPL", "TSLA"}
	if len(snaps) != len(want) {
		t.Fatalf("snapshots() len = %d, want %d", len(snaps), len(want))
	}
	for i, s := range snaps {
		if s.Symbol != want[i] {
			t.Errorf("snapshots()[%d] = %s, want %s", i, s.Symbol, want[i])
		}
	}
}

func TestWeightedAvg(t *testing.T) {
	tests := []struct {
		name                                     string
		existingAvg, existingQty, price, qty, tq string
		want                                     string
	}{
		{"even blend", "150", "10", "160", "10", "20", "155"},
		{"zero total falls back to price", "150", "10", "160", "10", "0", "160"},
		{"fractional", "1.5", "2", "3", "1", "3", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := weightedAvg(dec(tt.existingAvg), dec(tt.existingQty), dec(tt.price), dec(tt.qty), dec(tt.tq))
			if !got.Equal(dec(tt.want)) {
				t.Errorf("weightedAvg() = %s, want %s", got, tt.want)
			}
		})
	}
}
