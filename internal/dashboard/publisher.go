package dashboard

import "auctionhouse/pkg/types"

// HubPublisher adapts a Hub to auctionhouse.DashboardPublisher, so the
// House can push each commodity's just-resolved snapshot straight to
// connected WebSocket clients without importing this package.
type HubPublisher struct {
	hub *Hub
}

// NewHubPublisher wraps a Hub for use as a House's DashboardPublisher.
func NewHubPublisher(hub *Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// PublishSnapshot implements auctionhouse.DashboardPublisher.
func (p *HubPublisher) PublishSnapshot(info types.PriceInfo) {
	p.hub.BroadcastEvent(NewMarketSnapshotEvent(CommodityStatus{
		Commodity:         info.Commodity,
		CurrentPrice:      info.CurrentPrice,
		RecentPrice:       info.RecentPrice,
		CurrentNetSupply:  info.CurrentNetSupply,
		RecentNetSupply:   info.RecentNetSupply,
		RecentTradeVolume: info.RecentTradeVolume,
	}))
}
