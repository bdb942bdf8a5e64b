package engine

import (
	"errors"
	"testing"
	"time"

	"backtester/types"

	"github.com/shopspring/decimal"
)

func TestNewOrder(t *testing.T) {
	tests := []struct {
		name      string
		symbol    string
		kind      Kind
		direction types.Direction
		quantity  string
		wantErr   error
	}{
		{"market long", "AAPL", Market(), types.DirectionLong, "10", nil},
		{"limit short", "AAPL", Limit(dec("150")), types.DirectionShort, "0.5", nil},
		{"stop long", "AAPL", Stop(dec("140")), types.DirectionLong, "1", nil},
		{"zero quantity", "AAPL", Market(), types.DirectionLong, "0", ErrInvalidQuantity},
		{"negative quantity", "AAPL", Market(), types.DirectionShort, "-3", ErrInvalidQuantity},
		{"empty symbol", "", Market(), types.DirectionLong, "1", ErrEmptySymbol},
		{"unknown direction", "AAPL", Market(), types.Direction("SIDEWAYS"), "1", ErrUnknownDirection},
		{"limit without price", "AAPL", Limit(decimal.Zero), types.DirectionLong, "1", ErrInvalidTriggerPrice},
		{"stop with negative price", "AAPL", Stop(dec("-1")), types.DirectionShort, "1", ErrInvalidTriggerPrice},
		{"unknown type", "AAPL", Kind{Type: types.OrderType("ICEBERG")}, types.DirectionLong, "1", ErrUnknownOrderType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewOrder(tt.symbol, tt.kind, tt.direction, dec(tt.quantity))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewOrder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if got != nil {
					t.Errorf("NewOrder() returned an order alongside error %v", err)
				}
				return
			}
			if got.Filled() {
				t.Errorf("new order should be pending")
			}
			snap := got.Snapshot()
			if snap.Status != types.OrderPending || snap.FillPrice.Valid || snap.PnL.Valid || !snap.FillTime.IsZero() {
				t.Errorf("pending order has fill state: %+v", snap)
			}
		})
	}
}

func TestNewOrder_UniqueIDsAndOptions(t *testing.T) {
	openTime := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	a := mustOrder(t, "AAPL", Market(), types.DirectionLong, "1", WithOpenPrice(dec("150")), WithOpenTime(openTime))
	b := mustOrder(t, "AAPL", Market(), types.DirectionLong, "1")

	if a.ID() == b.ID() {
		t.Fatalf("orders share id %s", a.ID())
	}
	snap := a.Snapshot()
	if !snap.OpenPrice.Valid || !snap.OpenPrice.Decimal.Equal(dec("150")) {
		t.Errorf("open price = %v, want 150", snap.OpenPrice)
	}
	if !snap.OpenTime.Equal(openTime) {
		t.Errorf("open time = %v, want %v", snap.OpenTime, openTime)
	}
	if b.Snapshot().OpenPrice.Valid {
		t.Errorf("open price should be unset")
	}
	if b.Snapshot().OpenTime.IsZero() {
		t.Errorf("open time should default to now")
	}
}

func TestOrder_Triggers(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		direction types.Direction
		price     string
		want      bool
	}{
		{"market long always", Market(), types.DirectionLong, "1000", true},
		{"market short always", Market(), types.DirectionShort, "0.01", true},

		{"limit long below", Limit(dec("150")), types.DirectionLong, "148", true},
		{"limit long at limit", Limit(dec("150")), types.DirectionLong, "150", true},
		{"limit long above", Limit(dec("150")), types.DirectionLong, "152", false},
		{"limit short above", Limit(dec("150")), types.DirectionShort, "152", true},
		{"limit short at limit", Limit(dec("150")), types.DirectionShort, "150", true},
		{"limit short below", Limit(dec("150")), types.DirectionShort, "148", false},

		{"stop long below", Stop(dec("140")), types.DirectionLong, "139.99", true},
		{"stop long at stop", Stop(dec("140")), types.DirectionLong, "140", true},
		{"stop long above", Stop(dec("140")), types.DirectionLong, "140.01", false},
		{"stop short above", Stop(dec("160")), types.DirectionShort, "160.01", true},
		{"stop short at stop", Stop(dec("160")), types.DirectionShort, "160", true},
		{"stop short below", Stop(dec("160")), types.DirectionShort, "159.99", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := mustOrder(t, "AAPL", tt.kind, tt.direction, "10")
			if got := o.Triggers(dec(tt.price)); got != tt.want {
				t.Errorf("Triggers(%s) = %v, want %v", tt.price, got, tt.want)
			}
			if o.Filled() {
				t.Errorf("Triggers() must not fill the order")
			}
			if got := o.Evaluate(dec(tt.price), time.UnixMilli(1)); got != tt.want {
				t.Errorf("Evaluate(%s) = %v, want %v", tt.price, got, tt.want)
			}
			if o.Filled() != tt.want {
				t.Errorf("Filled() = %v, want %v", o.Filled(), tt.want)
			}
		})
	}
}

func TestOrder_EvaluateFillsOnce(t *testing.T) {
	fillTime := time.UnixMilli(42)
	o := mustOrder(t, "AAPL", Market(), types.DirectionLong, "10", WithOpenPrice(dec("150")))

	if !o.Evaluate(dec("155"), fillTime) {
		t.Fatalf("first Evaluate() should fill")
	}
	if o.Evaluate(dec("140"), time.UnixMilli(43)) {
		t.Fatalf("second Evaluate() should be a no-op")
	}
	if !o.FillPrice().Equal(dec("155")) {
		t.Errorf("fill price = %s, want 155", o.FillPrice())
	}
	if !o.FillTime().Equal(fillTime) {
		t.Errorf("fill time = %v, want %v", o.FillTime(), fillTime)
	}
	snap := o.Snapshot()
	if snap.Status != types.OrderFilled || !snap.FillPrice.Valid || !snap.PnL.Valid {
		t.Errorf("filled snapshot incomplete: %+v", snap)
	}
}

func TestOrder_PnL(t *testing.T) {
	tests := []struct {
		name      string
		direction types.Direction
		openPrice string
		fillPrice string
		want      string
	}{
		// (open - fill) * qty for long
		{"long filled above open", types.DirectionLong, "150", "155", "-50"},
		{"long filled below open", types.DirectionLong, "155", "150", "50"},
		// (fill - open) * qty for short
		{"short filled below open", types.DirectionShort, "150", "145", "-50"},
		{"short filled above open", types.DirectionShort, "150", "160", "100"},
		{"long without open price", types.DirectionLong, "", "12", "-120"},
		{"short without open price", types.DirectionShort, "", "12", "120"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []OrderOption
			if tt.openPrice != "" {
				opts = append(opts, WithOpenPrice(dec(tt.openPrice)))
			}
			o := mustOrder(t, "AAPL", Market(), tt.direction, "10", opts...)
			o.Evaluate(dec(tt.fillPrice), time.UnixMilli(1))
			if !o.PnL().Equal(dec(tt.want)) {
				t.Errorf("PnL() = %s, want %s", o.PnL(), tt.want)
			}
		})
	}
}

func TestOrder_StopTriggered(t *testing.T) {
	stop := mustOrder(t, "AAPL", Stop(dec("150")), types.DirectionShort, "10", WithOpenPrice(dec("155")))
	if stop.Evaluate(dec("149"), time.UnixMilli(1)) {
		t.Fatalf("stop short should not fill below its stop")
	}
	if stop.StopTriggered() {
		t.Errorf("stop flag set without a fill")
	}
	if !stop.Evaluate(dec("150"), time.UnixMilli(2)) {
		t.Fatalf("stop short should fill at its stop")
	}
	if !stop.StopTriggered() || !stop.Snapshot().StopTriggered {
		t.Errorf("stop flag not set after fill")
	}

	limit := mustOrder(t, "AAPL", Limit(dec("150")), types.DirectionLong, "10")
	limit.Evaluate(dec("150"), time.UnixMilli(1))
	if limit.StopTriggered() {
		t.Errorf("limit order must not report a stop trigger")
	}
}

// ----------------Helper functions----------------
func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustOrder(t *testing.T, symbol string, kind Kind, direction types.Direction, qty string, opts ...OrderOption) *Order {
	t.Helper()
	o, err := NewOrder(symbol, kind, direction, dec(qty), opts...)
	if err != nil {
		t.Fatalf("NewOrder() error = %v", err)
	}
	return o
}
