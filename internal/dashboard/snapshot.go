package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/config"
	"auctionhouse/pkg/types"
)

// Provider is the read surface the dashboard needs from the Auction House;
// satisfied by *auctionhouse.House, kept as its own interface so the
// dashboard package never imports auctionhouse directly (avoids an import
// cycle since auctionhouse.House accepts a DashboardPublisher).
type Provider interface {
	Commodities() []types.Commodity
	PriceInfo(commodity string) types.PriceInfo
	Demographics() types.Demographics
	SpreadProfitSnapshot() decimal.Decimal
}

// BuildSnapshot aggregates the house's current state into a dashboard
// snapshot (mirrors the teacher's BuildSnapshot in api/snapshot.go).
func BuildSnapshot(provider Provider, cfg config.Config) Snapshot {
	commodities := provider.Commodities()
	rows := make([]CommodityStatus, 0, len(commodities))
	for _, c := range commodities {
		info := provider.PriceInfo(c.Name)
		rows = append(rows, CommodityStatus{
			Commodity:         c.Name,
			Producer:          c.Producer,
			CurrentPrice:      info.CurrentPrice,
			RecentPrice:       info.RecentPrice,
			CurrentNetSupply:  info.CurrentNetSupply,
			RecentNetSupply:   info.RecentNetSupply,
			RecentTradeVolume: info.RecentTradeVolume,
		})
	}

	return Snapshot{
		Timestamp:    time.Now(),
		Commodities:  rows,
		Demographics: provider.Demographics(),
		SpreadProfit: provider.SpreadProfitSnapshot(),
		Config:       NewConfigSummary(cfg),
	}
}
