package auctionhouse

import (
	"math"

	"auctionhouse/pkg/types"
)

// chooseRoleWeighted implements market-driven weighted role selection (spec
// §4.5.1), grounded directly in auction_house.h's RandomChoice/GetProducer:
// one weight entry per registered commodity (not deduplicated by producer
// role — a role producing two commodities gets two chances in the wheel),
// weight = exp(gamma * supply_signal), where supply_signal is the
// time-windowed average net supply over the last 100 ticks.
func (h *House) chooseRoleWeighted() types.Role {
	commodities := h.commodities()
	if len(commodities) == 0 {
		return types.RoleNone
	}

	roles := make([]types.Role, 0, len(commodities))
	weights := make([]float64, 0, len(commodities))
	sum := 0.0

	for _, c := range commodities {
		supplySignal := h.history.TNetSupply(c.Name, h.cfg.RecentWindow)
		w := math.Exp(h.cfg.Gamma * supplySignal.InexactFloat64())
		roles = append(roles, c.Producer)
		weights = append(weights, w)
		sum += w
	}

	if sum <= 0 {
		return types.RoleNone
	}

	roll := h.randFloat() * sum
	for i, w := range weights {
		if roll < w {
			return roles[i]
		}
		roll -= w
	}
	return types.RoleNone
}
