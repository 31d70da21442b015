package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/fabric"
	"auctionhouse/pkg/types"
)

func TestTryTakeCommodityAtomicFailsWithoutMutation(t *testing.T) {
	t.Parallel()

	f := New()
	ctx := context.Background()
	ids, _ := f.ReserveEntityIDs(ctx, 1)
	id := ids[0]
	_ = f.CreateEntity(ctx, id, map[string]any{
		"inventory": types.Inventory{
			Cash:     decimal.NewFromInt(100),
			Capacity: decimal.NewFromInt(50),
			Items:    map[string]types.InventoryItem{"wood": {Quantity: 2, UnitSize: decimal.NewFromInt(1)}},
		},
	})

	taken, err := f.TryTakeCommodity(ctx, id, "wood", 5, true)
	if err != nil {
		t.Fatal(err)
	}
	if taken != 0 {
		t.Fatalf("expected atomic take to fail (0 taken), got %d", taken)
	}

	inv, _ := f.GetInventory(ctx, id)
	if inv.Items["wood"].Quantity != 2 {
		t.Fatalf("inventory mutated despite atomic failure: %+v", inv.Items["wood"])
	}
}

func TestTryAddCommodityCapsAtCapacity(t *testing.T) {
	t.Parallel()

	f := New()
	ctx := context.Background()
	ids, _ := f.ReserveEntityIDs(ctx, 1)
	id := ids[0]
	_ = f.CreateEntity(ctx, id, map[string]any{
		"inventory": types.Inventory{
			Cash:     decimal.Zero,
			Capacity: decimal.NewFromInt(5),
			Items:    map[string]types.InventoryItem{"wood": {Quantity: 0, UnitSize: decimal.NewFromInt(1)}},
		},
	})

	added, err := f.TryAddCommodity(ctx, id, "wood", 10, decimal.NewFromInt(2))
	if err != nil {
		t.Fatal(err)
	}
	if added != 5 {
		t.Fatalf("added = %d, want capped to capacity 5", added)
	}
}

func TestWorkerScopedHandlersDontCollide(t *testing.T) {
	t.Parallel()

	f := New()
	ctx := context.Background()

	var gotA, gotB fabric.EntityID
	f.Worker(1).OnCommand("Report", func(ctx context.Context, senderID fabric.EntityID, payload any) (any, error) {
		gotA = senderID
		return nil, nil
	})
	f.Worker(2).OnCommand("Report", func(ctx context.Context, senderID fabric.EntityID, payload any) (any, error) {
		gotB = senderID
		return nil, nil
	})

	if _, err := f.SendCommand(ctx, 1, "Report", nil, time.Second); err != nil {
		t.Fatalf("send to worker 1: %v", err)
	}
	if _, err := f.SendCommand(ctx, 2, "Report", nil, time.Second); err != nil {
		t.Fatalf("send to worker 2: %v", err)
	}
	if gotA != 1 {
		t.Fatalf("worker 1 handler got senderID %d, want 1 (handler should not have been overwritten by worker 2's registration)", gotA)
	}
	if gotB != 2 {
		t.Fatalf("worker 2 handler got senderID %d, want 2", gotB)
	}
}

func TestForceTakeMoneyCanGoNegative(t *testing.T) {
	t.Parallel()

	f := New()
	ctx := context.Background()
	ids, _ := f.ReserveEntityIDs(ctx, 1)
	id := ids[0]
	_ = f.CreateEntity(ctx, id, map[string]any{
		"inventory": types.Inventory{Cash: decimal.NewFromInt(5), Items: map[string]types.InventoryItem{}},
	})

	if err := f.ForceTakeMoney(ctx, id, decimal.NewFromInt(20)); err != nil {
		t.Fatal(err)
	}
	inv, _ := f.GetInventory(ctx, id)
	if !inv.Cash.Equal(decimal.NewFromInt(-15)) {
		t.Fatalf("cash = %s, want -15 (bankruptcy path)", inv.Cash)
	}
}
