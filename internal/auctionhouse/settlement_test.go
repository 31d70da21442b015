package auctionhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"auctionhouse/pkg/types"
)

func seedTrader(t *testing.T, h *House, cash int64, items map[string]types.InventoryItem) int {
	t.Helper()
	ids, err := h.fab.ReserveEntityIDs(context.Background(), 1)
	if err != nil {
		t.Fatalf("reserve id: %v", err)
	}
	id := ids[0]
	if err := h.fab.CreateEntity(context.Background(), id, map[string]any{
		"inventory": types.Inventory{
			Capacity: decimal.NewFromInt(1000),
			Cash:     decimal.NewFromInt(cash),
			Items:    items,
		},
	}); err != nil {
		t.Fatalf("create entity: %v", err)
	}
	return id
}

func TestSettleMovesGoodsAndSplitsProceeds(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)
	ctx := context.Background()

	seller := seedTrader(t, h, 0, map[string]types.InventoryItem{"wood": {Quantity: 10, UnitSize: decimal.NewFromInt(1)}})
	buyer := seedTrader(t, h, 100, map[string]types.InventoryItem{})

	result, err := h.settle(ctx, "wood", buyer, seller, 5, decimal.NewFromInt(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != SettleOK {
		t.Fatalf("result = %v, want SettleOK", result)
	}

	sellerInv, _ := h.inv.GetInventory(ctx, seller)
	buyerInv, _ := h.inv.GetInventory(ctx, buyer)

	if sellerInv.Items["wood"].Quantity != 5 {
		t.Fatalf("seller wood = %d, want 5", sellerInv.Items["wood"].Quantity)
	}
	if buyerInv.Items["wood"].Quantity != 5 {
		t.Fatalf("buyer wood = %d, want 5", buyerInv.Items["wood"].Quantity)
	}

	// cost = 5 * 2 = 10, tax = 10 * 0.08 = 0.8, seller nets 9.2
	wantSellerCash := decimal.NewFromFloat(9.2)
	if !sellerInv.Cash.Equal(wantSellerCash) {
		t.Fatalf("seller cash = %s, want %s", sellerInv.Cash, wantSellerCash)
	}
	wantBuyerCash := decimal.NewFromInt(90)
	if !buyerInv.Cash.Equal(wantBuyerCash) {
		t.Fatalf("buyer cash = %s, want %s", buyerInv.Cash, wantBuyerCash)
	}
}

func TestSettleSellerFailOnInsufficientStock(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)
	ctx := context.Background()

	seller := seedTrader(t, h, 0, map[string]types.InventoryItem{"wood": {Quantity: 2, UnitSize: decimal.NewFromInt(1)}})
	buyer := seedTrader(t, h, 100, map[string]types.InventoryItem{})

	result, err := h.settle(ctx, "wood", buyer, seller, 5, decimal.NewFromInt(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != SettleSellerFail {
		t.Fatalf("result = %v, want SettleSellerFail", result)
	}

	sellerInv, _ := h.inv.GetInventory(ctx, seller)
	if sellerInv.Items["wood"].Quantity != 2 {
		t.Fatalf("seller wood mutated despite failure: %d", sellerInv.Items["wood"].Quantity)
	}
}

func TestSettleBuyerFailReturnsGoodsToSeller(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)
	ctx := context.Background()

	seller := seedTrader(t, h, 0, map[string]types.InventoryItem{"wood": {Quantity: 10, UnitSize: decimal.NewFromInt(1)}})
	buyer := seedTrader(t, h, 1, map[string]types.InventoryItem{})

	result, err := h.settle(ctx, "wood", buyer, seller, 5, decimal.NewFromInt(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != SettleBuyerFail {
		t.Fatalf("result = %v, want SettleBuyerFail", result)
	}

	sellerInv, _ := h.inv.GetInventory(ctx, seller)
	if sellerInv.Items["wood"].Quantity != 10 {
		t.Fatalf("wood not returned to seller: %d, want 10", sellerInv.Items["wood"].Quantity)
	}
	buyerInv, _ := h.inv.GetInventory(ctx, buyer)
	if !buyerInv.Cash.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("buyer cash changed despite failure: %s, want 1", buyerInv.Cash)
	}
}

func TestSettleAddsSalesTaxToSpreadProfit(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)
	ctx := context.Background()

	seller := seedTrader(t, h, 0, map[string]types.InventoryItem{"wood": {Quantity: 10, UnitSize: decimal.NewFromInt(1)}})
	buyer := seedTrader(t, h, 100, map[string]types.InventoryItem{})

	before := h.SpreadProfitSnapshot()
	if _, err := h.settle(ctx, "wood", buyer, seller, 5, decimal.NewFromInt(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := h.SpreadProfitSnapshot()

	if !after.Sub(before).Equal(decimal.NewFromFloat(0.8)) {
		t.Fatalf("spread profit delta = %s, want 0.8", after.Sub(before))
	}
}
