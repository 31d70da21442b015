// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the auction house — commodities,
// offers, settlement results, inventories and recipes, and per-commodity
// market snapshots (PriceInfo). It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents which book an offer belongs to.
type Side string

const (
	Bid Side = "BID"
	Ask Side = "ASK"
)

// Role is a trader archetype determining default recipes and starting
// inventory. NONE means "let the house choose via market-driven weighting".
type Role string

const (
	RoleNone       Role = "NONE"
	RoleFarmer     Role = "FARMER"
	RoleWoodcutter Role = "WOODCUTTER"
	RoleComposter  Role = "COMPOSTER"
	RoleMiner      Role = "MINER"
	RoleRefiner    Role = "REFINER"
	RoleBlacksmith Role = "BLACKSMITH"
)

// AgentType distinguishes a registering worker's kind.
type AgentType string

const (
	AgentMonitor     AgentType = "MONITOR"
	AgentAITrader    AgentType = "AI_TRADER"
	AgentHumanTrader AgentType = "HUMAN_TRADER"
)

// OfferState is the per-offer state machine (spec §4.1).
type OfferState int

const (
	StateNew OfferState = iota
	StatePending
	StateOpen
	StateClosedFilled
	StateClosedUnfilled
)

// ————————————————————————————————————————————————————————————————————————
// Commodity
// ————————————————————————————————————————————————————————————————————————

// Commodity is immutable once registered with the house.
type Commodity struct {
	Name     string          `json:"name"`
	UnitSize decimal.Decimal `json:"unit_size"` // inventory units consumed per quantity unit
	MarketID int             `json:"market_id"` // opaque routing tag
	Producer Role            `json:"producer"`  // default role that produces this commodity
}

// ————————————————————————————————————————————————————————————————————————
// Offers
// ————————————————————————————————————————————————————————————————————————

// BidOffer is a standing buy order.
type BidOffer struct {
	RequestID int
	SenderID  int
	Commodity string
	Quantity  int
	UnitPrice decimal.Decimal
	ExpiryMS  int64 // 0 == immediate sentinel at submission time, rewritten to 1 internally

	Seq   uint64 // monotonic submission sequence, used as the FIFO tiebreaker
	State OfferState

	BrokerFeePaid bool
	Result        BidResult
}

// AskOffer is a standing sell order. Same shape as BidOffer; kept as a
// distinct type because stake semantics differ (commodity vs cash).
type AskOffer struct {
	RequestID int
	SenderID  int
	Commodity string
	Quantity  int
	UnitPrice decimal.Decimal
	ExpiryMS  int64

	Seq   uint64
	State OfferState

	BrokerFeePaid bool
	Result        AskResult
}

// BidResult is the mutable accumulator reported back to a bid's sender.
type BidResult struct {
	SenderID           int
	Commodity          string
	QuantityTraded     int
	QuantityUntraded   int
	AverageTradedPrice decimal.Decimal
	BoughtPrice        decimal.Decimal
	BrokerFeePaid      bool
	reported           bool // internal: guards exactly-once Result emission (P6)
}

// AskResult is the mutable accumulator reported back to an ask's sender.
type AskResult struct {
	SenderID           int
	Commodity          string
	QuantityTraded     int
	QuantityUntraded   int
	AverageTradedPrice decimal.Decimal
	BrokerFeePaid      bool
	reported           bool
}

// MarkReported flags the result as emitted; ReportedAlready checks it.
// Kept as methods (not exported fields) so callers can't double-emit by hand.
func (r *BidResult) MarkReported()         { r.reported = true }
func (r *BidResult) ReportedAlready() bool { return r.reported }
func (r *AskResult) MarkReported()         { r.reported = true }
func (r *AskResult) ReportedAlready() bool { return r.reported }

// ————————————————————————————————————————————————————————————————————————
// Inventory (Fabric-held, mirrored here for transport)
// ————————————————————————————————————————————————————————————————————————

// InventoryItem is one commodity line in a trader's Fabric-held inventory.
type InventoryItem struct {
	Quantity int             `json:"quantity"`
	UnitSize decimal.Decimal `json:"unit_size"`
}

// Inventory is the Fabric component read/written during settlement and
// production.
type Inventory struct {
	Capacity decimal.Decimal          `json:"capacity"`
	Cash     decimal.Decimal          `json:"cash"`
	Items    map[string]InventoryItem `json:"items"`
}

// RecipeItem is one line of a Recipe's requires/produces list.
type RecipeItem struct {
	Commodity string  `json:"commodity"`
	Quantity  int     `json:"quantity"`
	Chance    float64 `json:"chance"` // in [0,1]; >= 1 treated as unconditional
}

// Recipe is one entry in a trader's building list.
type Recipe struct {
	Name       string       `json:"name"`
	Priority   int          `json:"priority"` // lower evaluates first
	Repeatable bool         `json:"repeatable"`
	Requires   []RecipeItem `json:"requires"`
	Produces   []RecipeItem `json:"produces"`
}

// Buildings is the Fabric component holding a trader's recipe list plus its
// idle tax.
type Buildings struct {
	Recipes []Recipe        `json:"recipes"`
	IdleTax decimal.Decimal `json:"idle_tax"`
}

// ————————————————————————————————————————————————————————————————————————
// Market snapshot (published per commodity, per tick)
// ————————————————————————————————————————————————————————————————————————

// PriceInfo is the per-commodity market snapshot component (spec §6).
type PriceInfo struct {
	Commodity         string          `json:"commodity"`
	CurrentPrice      decimal.Decimal `json:"curr_price"`
	RecentPrice       decimal.Decimal `json:"recent_price"`
	CurrentNetSupply  decimal.Decimal `json:"curr_net_supply"`
	RecentNetSupply   decimal.Decimal `json:"recent_net_supply"`
	RecentTradeVolume decimal.Decimal `json:"recent_trade_volume"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ————————————————————————————————————————————————————————————————————————
// Demographics
// ————————————————————————————————————————————————————————————————————————

// Demographics tracks population counts and lifetime aggregates.
type Demographics struct {
	RoleCounts    map[Role]int `json:"role_counts"`
	TotalDeaths   int          `json:"total_deaths"`
	TotalAgeTicks int64        `json:"total_age_ticks"`
}
