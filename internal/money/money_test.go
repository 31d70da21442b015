package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestClamp(t *testing.T) {
	t.Parallel()

	lo, hi := decimal.NewFromFloat(0.10), decimal.NewFromInt(100)
	cases := []struct {
		v    float64
		want float64
	}{
		{-5, 0.10},
		{0.05, 0.10},
		{50, 50},
		{1000, 100},
	}
	for _, c := range cases {
		got := Clamp(decimal.NewFromFloat(c.v), lo, hi)
		if !got.Equal(decimal.NewFromFloat(c.want)) {
			t.Errorf("Clamp(%v) = %s, want %v", c.v, got, c.want)
		}
	}
}

func TestMinMaxInt(t *testing.T) {
	t.Parallel()

	if MinInt(3, 5) != 3 {
		t.Error("MinInt(3,5) != 3")
	}
	if MaxInt(3, 5) != 5 {
		t.Error("MaxInt(3,5) != 5")
	}
}
