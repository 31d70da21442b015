package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestResultMarkReportedOnlyOnce(t *testing.T) {
	t.Parallel()

	var r BidResult
	if r.ReportedAlready() {
		t.Fatal("fresh BidResult should not be reported")
	}
	r.MarkReported()
	if !r.ReportedAlready() {
		t.Fatal("expected ReportedAlready to be true after MarkReported")
	}

	var a AskResult
	a.MarkReported()
	if !a.ReportedAlready() {
		t.Fatal("expected ReportedAlready to be true after MarkReported")
	}
}

func TestCommodityZeroValueUnitSize(t *testing.T) {
	t.Parallel()

	c := Commodity{Name: "wood", UnitSize: decimal.NewFromInt(1)}
	if !c.UnitSize.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unit size = %s, want 1", c.UnitSize)
	}
}
