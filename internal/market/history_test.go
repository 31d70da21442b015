package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestHistory_AppendTickNoTradesCarriesPrevPrice(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.AppendTick("food", decimal.NewFromInt(3), decimal.NewFromInt(1), 2, 3, decimal.NewFromInt(10), decimal.NewFromInt(9))

	if got := h.PriceMostRecent("food"); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("price after first tick = %s, want 10", got)
	}

	// Second tick: no trades. Price series must repeat the previous value.
	h.AppendTick("food", decimal.NewFromInt(1), decimal.NewFromInt(0), 0, 0, decimal.Zero, decimal.Zero)
	if got := h.PriceMostRecent("food"); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("price after no-trade tick = %s, want carried-forward 10", got)
	}
	if got := h.CountSamples("food"); got != 2 {
		t.Fatalf("CountSamples = %d, want 2 (one per tick, P7 contiguity)", got)
	}
}

func TestHistory_NPriceVolumeWeightedExample(t *testing.T) {
	t.Parallel()

	// Scenario 6: food traded 3 units at prices {10,10,12} -> avg 10.666...
	h := NewHistory()
	avg := decimal.NewFromInt(10).Mul(decimal.NewFromInt(2)).Add(decimal.NewFromInt(12)).Div(decimal.NewFromInt(3))
	h.AppendTick("food", decimal.Zero, decimal.Zero, 2, 3, avg, decimal.NewFromInt(9))

	got := h.PriceMostRecent("food")
	want, _ := decimal.NewFromString("10.6666666666666667")
	if !got.Round(6).Equal(want.Round(6)) {
		t.Fatalf("price = %s, want ~%s", got, want)
	}
}

func TestHistory_TNetSupplyWindow(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.AppendTick("ore", decimal.NewFromInt(5), decimal.NewFromInt(0), 0, 0, decimal.Zero, decimal.Zero)

	got := h.TNetSupply("ore", time.Minute)
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("t_average net_supply = %s, want 5", got)
	}

	// Outside the window, the sample shouldn't count.
	got = h.TNetSupply("ore", 0)
	if !got.Equal(decimal.Zero) {
		t.Fatalf("t_average net_supply with zero window = %s, want 0", got)
	}
}

func TestHistory_ExistsAndInitialise(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	if h.Exists("wood") {
		t.Fatal("fresh history should not have wood initialised")
	}
	h.Initialise("wood")
	if !h.Exists("wood") {
		t.Fatal("expected wood to be initialised")
	}
}
