package auctionhouse

import (
	"sync/atomic"

	"github.com/shopspring/decimal"

	"auctionhouse/pkg/types"
)

// DashboardPublisher receives every per-commodity snapshot as it is
// published, for forwarding to the dashboard's WebSocket hub. House holds
// at most one, set once at startup; nil means no dashboard is attached.
type DashboardPublisher interface {
	PublishSnapshot(types.PriceInfo)
}

// publisher is stored behind an atomic.Value so resolve's hot path (one
// call per commodity per tick) never contends with SetDashboardPublisher,
// which runs once during wiring.
func (h *House) SetDashboardPublisher(p DashboardPublisher) {
	h.publisherBox.Store(&p)
}

func (h *House) dashboardPublisher() DashboardPublisher {
	v, ok := h.publisherBox.Load().(*DashboardPublisher)
	if !ok || v == nil {
		return nil
	}
	return *v
}

func (h *House) buildPriceInfo(commodity string) types.PriceInfo {
	return types.PriceInfo{
		Commodity:         commodity,
		CurrentPrice:      h.history.NPrice(commodity, 1),
		RecentPrice:       h.history.NPrice(commodity, h.cfg.NLookback),
		CurrentNetSupply:  h.history.NNetSupply(commodity, 1),
		RecentNetSupply:   h.history.NNetSupply(commodity, h.cfg.NLookback),
		RecentTradeVolume: h.history.TTradeVolume(commodity, h.cfg.RecentWindow),
	}
}

// Commodities exposes the listed commodities for the dashboard snapshot
// builder (read-only, safe for concurrent use).
func (h *House) Commodities() []types.Commodity {
	return h.commodities()
}

// PriceInfo returns the latest market snapshot for one commodity.
func (h *House) PriceInfo(commodity string) types.PriceInfo {
	return h.buildPriceInfo(commodity)
}

// Demographics returns a point-in-time copy of population counters.
func (h *House) Demographics() types.Demographics {
	return h.demo.Snapshot()
}

// RegistrationStageCounts reports how many registration attempts have
// reached each stage of the handshake (spec §9's NONE/RESERVED_ID/
// CREATED_ENTITY/ASSIGNED_PARTITION state machine).
func (h *House) RegistrationStageCounts() map[string]int64 {
	return h.registrySM.Snapshot()
}

// SpreadProfitSnapshot is an alias kept for dashboard code clarity; same
// value as SpreadProfit.
func (h *House) SpreadProfitSnapshot() decimal.Decimal {
	return h.SpreadProfit()
}
