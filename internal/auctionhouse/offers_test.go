package auctionhouse

import (
	"context"
	"testing"

	"auctionhouse/pkg/types"
)

func TestHandleMakeBidOfferAccepted(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)
	h.RegisterCommodity(types.Commodity{Name: "wood", Producer: types.RoleWoodcutter})

	resp, err := h.handleMakeBidOffer(context.Background(), 7, map[string]any{
		"commodity":  "wood",
		"quantity":   float64(3),
		"unit_price": "2.5",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := resp.(offerResponse)
	if !got.Accepted {
		t.Fatalf("offer rejected: %s", got.Reason)
	}

	book, _ := h.bookFor("wood")
	bids, _ := book.debugCounts()
	if bids != 1 {
		t.Fatalf("book bid count = %d, want 1", bids)
	}
}

func TestHandleMakeBidOfferUnknownCommodityRejected(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)

	resp, err := h.handleMakeBidOffer(context.Background(), 7, map[string]any{
		"commodity":  "unobtainium",
		"quantity":   float64(1),
		"unit_price": "1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := resp.(offerResponse)
	if got.Accepted {
		t.Fatal("expected rejection for unregistered commodity")
	}
}

func TestHandleMakeAskOfferRejectsBadQuantity(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)
	h.RegisterCommodity(types.Commodity{Name: "wood", Producer: types.RoleWoodcutter})

	resp, err := h.handleMakeAskOffer(context.Background(), 7, map[string]any{
		"commodity":  "wood",
		"quantity":   float64(0),
		"unit_price": "2.5",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := resp.(offerResponse)
	if got.Accepted {
		t.Fatal("expected rejection for zero quantity")
	}
}

func TestHandleMakeBidOfferDefaultsSenderIDFromCaller(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)
	h.RegisterCommodity(types.Commodity{Name: "wood", Producer: types.RoleWoodcutter})

	_, err := h.handleMakeBidOffer(context.Background(), 42, map[string]any{
		"commodity":  "wood",
		"quantity":   float64(1),
		"unit_price": "1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	book, _ := h.bookFor("wood")
	if len(book.bids) != 1 || book.bids[0].SenderID != 42 {
		t.Fatalf("bid sender id not defaulted from caller: %+v", book.bids)
	}
}
