package trader

import (
	"github.com/shopspring/decimal"

	"auctionhouse/internal/money"
)

// alphaDefault is the EWMA smoothing factor for cost-belief updates (spec
// §4.6), grounded in inventory.h's CommodityBeliefs::UpdateCostFromProduction.
const alphaDefault = 0.2

// commodityBelief tracks one commodity's ideal holding level and the
// trader's internal belief about its unit cost — the same shape as
// inventory.h's CommodityBelief, renamed to this module's vocabulary.
type commodityBelief struct {
	ideal int
	cost  decimal.Decimal
}

// Beliefs holds a trader's per-commodity ideal/cost beliefs, updated once
// per tick from the production response (spec §4.6 "Belief update").
type Beliefs struct {
	alpha  float64
	minCost decimal.Decimal
	items  map[string]*commodityBelief
}

// NewBeliefs creates an empty belief set.
func NewBeliefs(alpha float64, minCost decimal.Decimal) *Beliefs {
	if alpha <= 0 {
		alpha = alphaDefault
	}
	return &Beliefs{alpha: alpha, minCost: minCost, items: make(map[string]*commodityBelief)}
}

// Seed sets (or resets) a commodity's ideal holding level. Cost is left at
// zero until the first production response seeds it (spec §4.6: "If the
// prior cost was 0, seed it with unit_price first").
func (b *Beliefs) Seed(commodity string, ideal int) {
	if _, ok := b.items[commodity]; !ok {
		b.items[commodity] = &commodityBelief{ideal: ideal, cost: decimal.Zero}
		return
	}
	b.items[commodity].ideal = ideal
}

// Ideal returns the ideal holding level for a commodity (0 if unseeded).
func (b *Beliefs) Ideal(commodity string) int {
	if c, ok := b.items[commodity]; ok {
		return c.ideal
	}
	return 0
}

// Cost returns the current cost belief for a commodity.
func (b *Beliefs) Cost(commodity string) decimal.Decimal {
	if c, ok := b.items[commodity]; ok {
		return c.cost
	}
	return decimal.Zero
}

// Commodities lists every commodity this trader has a belief for, the
// driver for generate_offers' per-commodity loop (spec §4.6 step 2).
func (b *Beliefs) Commodities() []string {
	out := make([]string, 0, len(b.items))
	for c := range b.items {
		out = append(out, c)
	}
	return out
}

// UpdateFromProduction applies the belief-update algorithm (spec §4.6) after
// one tick_production response: trackedCosts accumulates consumed-item cost,
// unit_price is derived from cash/tracked-cost pressure, and each produced
// commodity's cost belief is nudged toward unit_price by EWMA. Overproduced
// commodities (quantity lost to capacity) have their belief depressed by
// 1.3^(-overproduced), signalling the trader is making too much of it.
func (b *Beliefs) UpdateFromProduction(cash decimal.Decimal, produced, overproduced, consumed map[string]int) {
	totalProduced := 0
	for _, q := range produced {
		totalProduced += q
	}
	if totalProduced == 0 {
		return
	}

	trackedCosts := decimal.Zero
	for commodity, qty := range consumed {
		trackedCosts = trackedCosts.Add(b.Cost(commodity).Mul(decimal.NewFromInt(int64(qty))))
	}

	floor := cash.Div(decimal.NewFromInt(50))
	basis := money.Max(floor, trackedCosts)
	basis = money.Max(b.minCost, basis)
	unitPrice := basis.Div(decimal.NewFromInt(int64(totalProduced)))

	for commodity, qty := range produced {
		belief := b.beliefFor(commodity)
		for i := 0; i < qty; i++ {
			if belief.cost.IsZero() {
				belief.cost = unitPrice
				continue
			}
			belief.cost = unitPrice.Mul(decimal.NewFromFloat(b.alpha)).
				Add(belief.cost.Mul(decimal.NewFromFloat(1 - b.alpha)))
		}
	}

	for commodity, qty := range overproduced {
		if qty <= 0 {
			continue
		}
		belief := b.beliefFor(commodity)
		factor := decimal.NewFromFloat(1.3).Pow(decimal.NewFromInt(int64(-qty)))
		belief.cost = belief.cost.Mul(factor)
	}
}

func (b *Beliefs) beliefFor(commodity string) *commodityBelief {
	c, ok := b.items[commodity]
	if !ok {
		c = &commodityBelief{}
		b.items[commodity] = c
	}
	return c
}
