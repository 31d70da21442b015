package auctionhouse

import (
	"testing"

	"github.com/shopspring/decimal"

	"auctionhouse/pkg/types"
)

func TestSubmitBidRejectsBadOffer(t *testing.T) {
	t.Parallel()
	b := NewBook()

	if err := b.SubmitBid(&types.BidOffer{Commodity: "wood", Quantity: 0, UnitPrice: decimal.NewFromInt(1)}); err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if err := b.SubmitBid(&types.BidOffer{Commodity: "wood", Quantity: 1, UnitPrice: decimal.Zero}); err == nil {
		t.Fatal("expected error for zero price")
	}
}

func TestSubmitBidAssignsSeqAndOpensOffer(t *testing.T) {
	t.Parallel()
	b := NewBook()

	offer := &types.BidOffer{Commodity: "wood", Quantity: 5, UnitPrice: decimal.NewFromInt(10)}
	if err := b.SubmitBid(offer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offer.State != types.StateOpen {
		t.Fatalf("state = %v, want StateOpen", offer.State)
	}

	second := &types.BidOffer{Commodity: "wood", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}
	if err := b.SubmitBid(second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Seq <= offer.Seq {
		t.Fatalf("expected monotonically increasing Seq, got %d then %d", offer.Seq, second.Seq)
	}
}

func TestSortBidsDescendingPriceThenFIFO(t *testing.T) {
	t.Parallel()

	low := &types.BidOffer{UnitPrice: decimal.NewFromInt(5), Seq: 1}
	high := &types.BidOffer{UnitPrice: decimal.NewFromInt(10), Seq: 2}
	highEarlier := &types.BidOffer{UnitPrice: decimal.NewFromInt(10), Seq: 0}

	bids := []*types.BidOffer{low, high, highEarlier}
	sortBidsDescending(bids)

	if bids[0] != highEarlier || bids[1] != high || bids[2] != low {
		t.Fatalf("unexpected order: %+v", bids)
	}
}

func TestSortAsksAscendingPriceThenFIFO(t *testing.T) {
	t.Parallel()

	high := &types.AskOffer{UnitPrice: decimal.NewFromInt(10), Seq: 1}
	low := &types.AskOffer{UnitPrice: decimal.NewFromInt(5), Seq: 2}
	lowEarlier := &types.AskOffer{UnitPrice: decimal.NewFromInt(5), Seq: 0}

	asks := []*types.AskOffer{high, low, lowEarlier}
	sortAsksAscending(asks)

	if asks[0] != lowEarlier || asks[1] != low || asks[2] != high {
		t.Fatalf("unexpected order: %+v", asks)
	}
}
