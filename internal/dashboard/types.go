// Package dashboard serves a read-only HTTP/WebSocket view of the auction
// house's market snapshots and demographics, adapted from the teacher's
// internal/api package (server.go/handlers.go/stream.go/snapshot.go/types.go).
package dashboard

import (
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/config"
	"auctionhouse/pkg/types"
)

// Snapshot is the complete dashboard state, the spec §6-shaped twin of the
// teacher's DashboardSnapshot (markets -> commodities, risk -> demographics).
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Commodities []CommodityStatus `json:"commodities"`

	Demographics types.Demographics `json:"demographics"`
	SpreadProfit decimal.Decimal    `json:"spread_profit"`

	Config ConfigSummary `json:"config"`
}

// CommodityStatus is one commodity's market snapshot row.
type CommodityStatus struct {
	Commodity         string          `json:"commodity"`
	Producer          types.Role      `json:"producer"`
	CurrentPrice      decimal.Decimal `json:"curr_price"`
	RecentPrice       decimal.Decimal `json:"recent_price"`
	CurrentNetSupply  decimal.Decimal `json:"curr_net_supply"`
	RecentNetSupply   decimal.Decimal `json:"recent_net_supply"`
	RecentTradeVolume decimal.Decimal `json:"recent_trade_volume"`
}

// ConfigSummary is the subset of configuration worth showing on the
// dashboard (spec §6, market + trader tuning knobs).
type ConfigSummary struct {
	TickPeriod string  `json:"tick_period"`
	SalesTax   float64 `json:"sales_tax"`
	BrokerFee  float64 `json:"broker_fee"`
	MinPrice   float64 `json:"min_price"`
	NLookback  int     `json:"n_lookback"`
	Gamma      float64 `json:"gamma"`
	Alpha      float64 `json:"alpha"`
}

// NewConfigSummary builds a ConfigSummary from the loaded config.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		TickPeriod: cfg.Market.TickPeriod.String(),
		SalesTax:   cfg.Market.SalesTax,
		BrokerFee:  cfg.Market.BrokerFee,
		MinPrice:   cfg.Market.MinPrice,
		NLookback:  cfg.Market.NLookback,
		Gamma:      cfg.Traders.Gamma,
		Alpha:      cfg.Traders.Alpha,
	}
}
