package auctionhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"auctionhouse/pkg/types"
)

func TestTickProductionNoBuildingsIsNoOp(t *testing.T) {
	t.Parallel()
	h, fab := newTestHouse(t)
	ctx := context.Background()

	ids, err := fab.ReserveEntityIDs(ctx, 1)
	if err != nil {
		t.Fatalf("reserve id: %v", err)
	}
	id := ids[0]
	if err := fab.CreateEntity(ctx, id, map[string]any{
		"inventory": types.Inventory{Capacity: decimal.NewFromInt(100), Cash: decimal.NewFromInt(50), Items: map[string]types.InventoryItem{}},
		"buildings": types.Buildings{},
	}); err != nil {
		t.Fatalf("create entity: %v", err)
	}

	_, ok, err := h.tickProduction(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no-op (ok=false) with no recipes")
	}
}

func TestTickProductionConsumesAndProduces(t *testing.T) {
	t.Parallel()
	h, fab := newTestHouse(t)
	ctx := context.Background()

	ids, _ := fab.ReserveEntityIDs(ctx, 1)
	id := ids[0]

	inv := types.Inventory{
		Capacity: decimal.NewFromInt(1000),
		Cash:     decimal.NewFromInt(100),
		Items: map[string]types.InventoryItem{
			"wheat": {Quantity: 10, UnitSize: decimal.NewFromInt(1)},
		},
	}
	buildings := types.Buildings{
		IdleTax: decimal.NewFromInt(5),
		Recipes: []types.Recipe{
			{
				Name:     "bake bread",
				Priority: 1,
				Requires: []types.RecipeItem{{Commodity: "wheat", Quantity: 5, Chance: 1}},
				Produces: []types.RecipeItem{{Commodity: "food", Quantity: 10, Chance: 1}},
			},
		},
	}
	if err := fab.CreateEntity(ctx, id, map[string]any{"inventory": inv, "buildings": buildings}); err != nil {
		t.Fatalf("create entity: %v", err)
	}

	result, ok, err := h.tickProduction(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected production to run")
	}
	if result.Consumed["wheat"] != 5 {
		t.Fatalf("consumed wheat = %d, want 5", result.Consumed["wheat"])
	}
	if result.Produced["food"] != 10 {
		t.Fatalf("produced food = %d, want 10", result.Produced["food"])
	}

	got, err := fab.GetInventory(ctx, id)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if got.Items["wheat"].Quantity != 5 {
		t.Fatalf("remaining wheat = %d, want 5", got.Items["wheat"].Quantity)
	}
	if got.Items["food"].Quantity != 10 {
		t.Fatalf("food = %d, want 10", got.Items["food"].Quantity)
	}
}

func TestTickProductionCapsProductionAtCapacity(t *testing.T) {
	t.Parallel()
	h, fab := newTestHouse(t)
	ctx := context.Background()

	ids, _ := fab.ReserveEntityIDs(ctx, 1)
	id := ids[0]

	inv := types.Inventory{
		Capacity: decimal.NewFromInt(3),
		Cash:     decimal.NewFromInt(100),
		Items:    map[string]types.InventoryItem{},
	}
	buildings := types.Buildings{
		Recipes: []types.Recipe{
			{
				Name:     "overflow",
				Priority: 1,
				Produces: []types.RecipeItem{{Commodity: "ore", Quantity: 10, Chance: 1}},
			},
		},
	}
	if err := fab.CreateEntity(ctx, id, map[string]any{"inventory": inv, "buildings": buildings}); err != nil {
		t.Fatalf("create entity: %v", err)
	}

	result, ok, err := h.tickProduction(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected production to run")
	}
	if result.Produced["ore"] != 3 {
		t.Fatalf("produced ore = %d, want 3 (capped by capacity)", result.Produced["ore"])
	}
	if result.Overproduced["ore"] != 7 {
		t.Fatalf("overproduced ore = %d, want 7", result.Overproduced["ore"])
	}
}

func TestTickProductionIdleTaxWhenNoRecipeQualifies(t *testing.T) {
	t.Parallel()
	h, fab := newTestHouse(t)
	ctx := context.Background()

	ids, _ := fab.ReserveEntityIDs(ctx, 1)
	id := ids[0]

	inv := types.Inventory{Capacity: decimal.NewFromInt(100), Cash: decimal.NewFromInt(20), Items: map[string]types.InventoryItem{}}
	buildings := types.Buildings{
		IdleTax: decimal.NewFromInt(25),
		Recipes: []types.Recipe{
			{Name: "needs ore", Priority: 1, Requires: []types.RecipeItem{{Commodity: "ore", Quantity: 1, Chance: 1}}},
		},
	}
	if err := fab.CreateEntity(ctx, id, map[string]any{"inventory": inv, "buildings": buildings}); err != nil {
		t.Fatalf("create entity: %v", err)
	}

	result, ok, err := h.tickProduction(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected the idle-tax path to run")
	}
	if !result.Bankrupt {
		t.Fatal("expected bankrupt after idle tax drives cash negative")
	}

	got, err := fab.GetInventory(ctx, id)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if !got.Cash.Equal(decimal.NewFromInt(-5)) {
		t.Fatalf("cash = %s, want -5", got.Cash)
	}
}
