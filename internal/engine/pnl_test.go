package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"ceraunus/pkg/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tradeUpdate(side types.Side, price, qty, commission string) *types.OrderUpdate {
	return &types.OrderUpdate{
		Symbol:          types.BTCUSDT,
		Side:            side,
		ExecType:        types.ExecTrade,
		LastFilledPrice: d(price),
		LastFilledQty:   d(qty),
		Commission:      d(commission),
	}
}

func TestLedgerRoundTripIsFlat(t *testing.T) {
	t.Parallel()

	l := NewLedger(decimal.Zero, decimal.Zero)
	l.OnTrade(tradeUpdate(types.Buy, "100", "1", "0.01"))
	l.OnTrade(tradeUpdate(types.Sell, "100", "1", "0.01"))

	if !l.Position().IsZero() {
		t.Errorf("position = %v, want 0", l.Position())
	}
	if !l.RealizedPnL().IsZero() {
		t.Errorf("realized = %v, want 0", l.RealizedPnL())
	}
	if !l.UnrealizedPnL().IsZero() {
		t.Errorf("unrealized = %v, want 0", l.UnrealizedPnL())
	}
	if !l.ExecutionPnL().Equal(d("-0.02")) {
		t.Errorf("execution = %v, want -0.02 (sum of commissions)", l.ExecutionPnL())
	}
}

func TestLedgerPartialFills(t *testing.T) {
	t.Parallel()

	l := NewLedger(decimal.Zero, decimal.Zero)
	l.OnTrade(tradeUpdate(types.Buy, "100", "0.3", "0.01"))

	if !l.Position().Equal(d("0.3")) {
		t.Errorf("position = %v, want 0.3", l.Position())
	}
	if !l.AvgEntryPrice().Equal(d("100")) {
		t.Errorf("avg entry = %v, want 100", l.AvgEntryPrice())
	}

	l.OnTrade(tradeUpdate(types.Buy, "100", "0.7", "0.01"))
	if !l.Position().Equal(d("1")) {
		t.Errorf("position = %v, want 1", l.Position())
	}
	if !l.AvgEntryPrice().Equal(d("100")) {
		t.Errorf("avg entry = %v, want 100", l.AvgEntryPrice())
	}
	if !l.ExecutionPnL().Equal(d("-0.02")) {
		t.Errorf("execution = %v, want -0.02", l.ExecutionPnL())
	}
	if !l.BuyQty().Equal(d("1")) || !l.BuyAmount().Equal(d("100")) {
		t.Errorf("buy qty/amount = %v/%v, want 1/100", l.BuyQty(), l.BuyAmount())
	}
}

func TestLedgerWeightedAverageEntry(t *testing.T) {
	t.Parallel()

	l := NewLedger(decimal.Zero, decimal.Zero)
	l.OnTrade(tradeUpdate(types.Buy, "100", "1", "0"))
	l.OnTrade(tradeUpdate(types.Buy, "110", "1", "0"))

	if !l.AvgEntryPrice().Equal(d("105")) {
		t.Errorf("avg entry = %v, want 105", l.AvgEntryPrice())
	}
	// Unrealized marks against the last fill price.
	if !l.UnrealizedPnL().Equal(d("10")) {
		t.Errorf("unrealized = %v, want (110-105)*2 = 10", l.UnrealizedPnL())
	}
}

func TestLedgerRealizeOnReduce(t *testing.T) {
	t.Parallel()

	l := NewLedger(decimal.Zero, decimal.Zero)
	l.OnTrade(tradeUpdate(types.Buy, "100", "2", "0"))
	l.OnTrade(tradeUpdate(types.Sell, "105", "1", "0"))

	if !l.Position().Equal(d("1")) {
		t.Errorf("position = %v, want 1", l.Position())
	}
	if !l.RealizedPnL().Equal(d("5")) {
		t.Errorf("realized = %v, want 5", l.RealizedPnL())
	}
	if !l.AvgEntryPrice().Equal(d("100")) {
		t.Errorf("avg entry = %v, must not change on reduce", l.AvgEntryPrice())
	}
}

func TestLedgerFlipLongToShort(t *testing.T) {
	t.Parallel()

	l := NewLedger(decimal.Zero, decimal.Zero)
	l.OnTrade(tradeUpdate(types.Buy, "100", "1", "0"))
	l.OnTrade(tradeUpdate(types.Sell, "110", "3", "0"))

	if !l.Position().Equal(d("-2")) {
		t.Errorf("position = %v, want -2", l.Position())
	}
	// The long leg realizes; the short restarts at the fill price.
	if !l.RealizedPnL().Equal(d("10")) {
		t.Errorf("realized = %v, want 10", l.RealizedPnL())
	}
	if !l.AvgEntryPrice().Equal(d("110")) {
		t.Errorf("avg entry = %v, want 110 after flip", l.AvgEntryPrice())
	}
}

func TestLedgerShortSide(t *testing.T) {
	t.Parallel()

	l := NewLedger(decimal.Zero, decimal.Zero)
	l.OnTrade(tradeUpdate(types.Sell, "100", "2", "0"))

	if !l.Position().Equal(d("-2")) {
		t.Errorf("position = %v, want -2", l.Position())
	}
	if !l.AvgEntryPrice().Equal(d("100")) {
		t.Errorf("avg entry = %v, want 100", l.AvgEntryPrice())
	}

	// Extending the short reweights the entry.
	l.OnTrade(tradeUpdate(types.Sell, "110", "2", "0"))
	if !l.AvgEntryPrice().Equal(d("105")) {
		t.Errorf("avg entry = %v, want 105", l.AvgEntryPrice())
	}

	// Covering half realizes against the weighted entry.
	l.OnTrade(tradeUpdate(types.Buy, "95", "2", "0"))
	if !l.Position().Equal(d("-2")) {
		t.Errorf("position = %v, want -2", l.Position())
	}
	if !l.RealizedPnL().Equal(d("20")) {
		t.Errorf("realized = %v, want (105-95)*2 = 20", l.RealizedPnL())
	}
	if !l.SellQty().Equal(d("4")) || !l.SellAmount().Equal(d("420")) {
		t.Errorf("sell qty/amount = %v/%v, want 4/420", l.SellQty(), l.SellAmount())
	}
}
