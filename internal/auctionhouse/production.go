package auctionhouse

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/fabric"
	"auctionhouse/internal/money"
	"auctionhouse/pkg/types"
)

// ProductionResult is the tick_production contract's response (spec §4.3).
type ProductionResult struct {
	Bankrupt     bool           `json:"bankrupt"`
	Produced     map[string]int `json:"produced"`
	Overproduced map[string]int `json:"overproduced"`
	Consumed     map[string]int `json:"consumed"`
}

func emptyProductionResult() ProductionResult {
	return ProductionResult{
		Produced:     map[string]int{},
		Overproduced: map[string]int{},
		Consumed:     map[string]int{},
	}
}

// handleRequestProduction is the Fabric command entry point; it delegates to
// tickProduction and marshals the result into the command's response shape.
//
// The trader's own id travels in the payload's sender_id field rather than
// the handler's senderID argument, the same fallback shape offers.go uses —
// inmemory.Fabric's SendCommand passes the RPC target through as senderID,
// not the caller's identity, so relying on senderID alone would tick
// production against the house itself instead of the requesting trader.
func (h *House) handleRequestProduction(ctx context.Context, senderID fabric.EntityID, payload any) (any, error) {
	traderID := senderID
	if m, ok := payload.(map[string]any); ok {
		if id := int(asFloat(m["sender_id"])); id != 0 {
			traderID = id
		}
	}

	result, ok, err := h.tickProduction(ctx, traderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Missing inventory or buildings: no-op per spec §4.3 step 1 — the
		// command itself fails rather than returning an empty result.
		return nil, fmt.Errorf("tick production: no inventory or buildings for %d", traderID)
	}
	return result, nil
}

// tickProduction implements the per-trader production step (spec §4.3):
// the first building (lowest priority number) whose requirements are fully
// satisfied is evaluated; its requires are consumed before its produces are
// created, so a recipe can't feed its own output back into itself within
// the same tick. If no building qualifies, idle_tax is deducted instead.
//
// This corrects two inverted min/max calls present in the original's
// ConsumeItem/ProduceItem (std::max where std::min was clearly intended —
// max would let a recipe consume more than it has or produce past
// capacity); the spec's resolved Open Question directs the min semantics
// implemented here.
func (h *House) tickProduction(ctx context.Context, traderID fabric.EntityID) (ProductionResult, bool, error) {
	inv, err := h.inv.GetInventory(ctx, traderID)
	if err != nil {
		return ProductionResult{}, false, nil
	}
	buildings, err := h.inv.GetBuildings(ctx, traderID)
	if err != nil {
		return ProductionResult{}, false, nil
	}
	if inv.Items == nil || len(buildings.Recipes) == 0 {
		return ProductionResult{}, false, nil
	}

	recipes := make([]types.Recipe, len(buildings.Recipes))
	copy(recipes, buildings.Recipes)
	sort.SliceStable(recipes, func(i, j int) bool { return recipes[i].Priority < recipes[j].Priority })

	result := emptyProductionResult()

	for _, recipe := range recipes {
		if !requirementsMet(recipe, inv) {
			continue
		}

		for _, r := range recipe.Requires {
			if !rolls(h.randFloat(), r.Chance) {
				continue
			}
			actual := r.Quantity
			item := inv.Items[r.Commodity]
			if actual > item.Quantity {
				actual = item.Quantity
			}
			item.Quantity -= actual
			inv.Items[r.Commodity] = item
			result.Consumed[r.Commodity] += actual
		}

		freeCapacity := remainingCapacity(inv)
		for _, p := range recipe.Produces {
			if !rolls(h.randFloat(), p.Chance) {
				continue
			}
			item := inv.Items[p.Commodity]
			unitSize := item.UnitSize
			if unitSize.IsZero() {
				unitSize = decimal.NewFromInt(1)
			}
			maxUnits := 0
			if unitSize.GreaterThan(decimal.Zero) && freeCapacity.GreaterThan(decimal.Zero) {
				maxUnits = int(freeCapacity.Div(unitSize).IntPart())
			}
			actual := money.MinInt(p.Quantity, maxUnits)
			if actual < 0 {
				actual = 0
			}
			item.Quantity += actual
			item.UnitSize = unitSize
			inv.Items[p.Commodity] = item
			freeCapacity = freeCapacity.Sub(unitSize.Mul(decimal.NewFromInt(int64(actual))))

			result.Produced[p.Commodity] += actual
			if lost := p.Quantity - actual; lost > 0 {
				result.Overproduced[p.Commodity] += lost
			}
		}

		if err := h.inv.SetInventory(ctx, traderID, inv); err != nil {
			return ProductionResult{}, false, fmt.Errorf("write back inventory for %d: %w", traderID, err)
		}
		result.Bankrupt = inv.Cash.IsNegative()
		return result, true, nil
	}

	inv.Cash = inv.Cash.Sub(buildings.IdleTax)
	if err := h.inv.SetInventory(ctx, traderID, inv); err != nil {
		return ProductionResult{}, false, fmt.Errorf("write back idle tax for %d: %w", traderID, err)
	}
	result.Bankrupt = inv.Cash.IsNegative()
	return result, true, nil
}

func requirementsMet(recipe types.Recipe, inv types.Inventory) bool {
	for _, r := range recipe.Requires {
		item, ok := inv.Items[r.Commodity]
		if !ok || item.Quantity < r.Quantity {
			return false
		}
	}
	return true
}

// rolls reports whether a probabilistic recipe entry fires: chance >= 1 is
// unconditional, otherwise a uniform [0,1) roll must land below it.
func rolls(roll float64, chance float64) bool {
	return chance >= 1 || roll < chance
}

func remainingCapacity(inv types.Inventory) decimal.Decimal {
	used := decimal.Zero
	for _, it := range inv.Items {
		size := it.UnitSize
		if size.IsZero() {
			size = decimal.NewFromInt(1)
		}
		used = used.Add(size.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return inv.Capacity.Sub(used)
}
