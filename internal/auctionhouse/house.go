// Package auctionhouse implements the central matcher: per-commodity
// double-sided order books, atomic settlement against Fabric-held
// inventories, the per-tick production step, market history, and the
// trader registration and shutdown lifecycle (spec §4).
package auctionhouse

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"auctionhouse/internal/config"
	"auctionhouse/internal/fabric"
	"auctionhouse/internal/market"
	"auctionhouse/pkg/types"
)

// houseConfig holds the decimal-converted tuning constants the matcher and
// production engine consume. Converted once at construction from the
// float64 config.MarketConfig so the hot paths never re-parse floats.
type houseConfig struct {
	TickPeriod     time.Duration
	SalesTax       decimal.Decimal
	BrokerFee      decimal.Decimal
	MinPrice       decimal.Decimal
	NLookback      int
	Gamma          float64
	RecentWindow   time.Duration // window used for "recent" (t_average) signals: 100 * tick_period
	StageTimeout   time.Duration
	IdleTaxDefault decimal.Decimal
}

// House is the Auction House: one instance runs a fixed-period tick loop,
// resolving every registered commodity's order book each tick (spec §5 —
// one dedicated thread per the original; here, one goroutine driving one
// resolution goroutine per commodity each tick).
type House struct {
	cfg houseConfig
	inv fabric.InventoryStore
	fab fabric.Fabric

	history *market.History
	logger  *slog.Logger

	mu         sync.RWMutex
	books      map[string]*Book
	commodity  map[string]types.Commodity
	spreadMu   sync.Mutex
	spread     decimal.Decimal
	demo       *Demographics
	registrySM *registrationState

	marketEntityID fabric.EntityID

	rand   *rand.Rand
	randMu sync.Mutex

	publisherBox atomic.Value
}

// NewHouse builds a House from config, wiring the given Fabric for entity
// lifecycle/commands and InventoryStore for settlement/production.
func NewHouse(cfg *config.Config, fab fabric.Fabric, inv fabric.InventoryStore, logger *slog.Logger) *House {
	hc := houseConfig{
		TickPeriod:     cfg.Market.TickPeriod,
		SalesTax:       decimal.NewFromFloat(cfg.Market.SalesTax),
		BrokerFee:      decimal.NewFromFloat(cfg.Market.BrokerFee),
		MinPrice:       decimal.NewFromFloat(cfg.Market.MinPrice),
		NLookback:      cfg.Market.NLookback,
		Gamma:          cfg.Traders.Gamma,
		RecentWindow:   100 * cfg.Market.TickPeriod,
		StageTimeout:   cfg.Traders.RegistrationStageTimeout,
		IdleTaxDefault: decimal.NewFromFloat(1),
	}

	h := &House{
		cfg:       hc,
		inv:       inv,
		fab:       fab,
		history:   market.NewHistory(),
		logger:    logger.With("component", "auction_house"),
		books:     make(map[string]*Book),
		commodity: make(map[string]types.Commodity),
		demo:      NewDemographics(),
		rand:      rand.New(rand.NewSource(1)),
	}
	h.registrySM = newRegistrationState()
	h.marketEntityID = h.registerMarketEntity()
	h.registerHandlers()
	return h
}

// registerMarketEntity reserves and creates the Fabric entity publishSnapshot
// targets for its per-commodity "market_snapshot_*" component updates — a
// real entity distinct from any trader's, rather than the nonexistent id 0
// the house's own commands conventionally use as "no specific target".
// Failure just means snapshot publication stays a debug-logged no-op; it
// never blocks startup.
func (h *House) registerMarketEntity() fabric.EntityID {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.StageTimeout)
	defer cancel()

	ids, err := h.fab.ReserveEntityIDs(ctx, 1)
	if err != nil || len(ids) == 0 {
		h.logger.Warn("failed to reserve market entity id", "error", err)
		return 0
	}
	id := ids[0]
	if err := h.fab.CreateEntity(ctx, id, map[string]any{"kind": "market"}); err != nil {
		h.logger.Warn("failed to create market entity", "error", err)
		return 0
	}
	return id
}

// RegisterCommodity adds a commodity to the house's listing, opening its
// book and initializing its history streams.
func (h *House) RegisterCommodity(c types.Commodity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commodity[c.Name] = c
	h.books[c.Name] = NewBook()
	h.history.Initialise(c.Name)
}

func (h *House) commodities() []types.Commodity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]types.Commodity, 0, len(h.commodity))
	for _, c := range h.commodity {
		out = append(out, c)
	}
	return out
}

func (h *House) bookFor(commodity string) (*Book, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.books[commodity]
	return b, ok
}

func (h *House) addSpreadProfit(amount decimal.Decimal) {
	h.spreadMu.Lock()
	defer h.spreadMu.Unlock()
	h.spread = h.spread.Add(amount)
}

// SpreadProfit reports the house's accumulated spread profit (broker fees
// plus sales tax); read-only counter, spec §5.
func (h *House) SpreadProfit() decimal.Decimal {
	h.spreadMu.Lock()
	defer h.spreadMu.Unlock()
	return h.spread
}

// Run drives the fixed-period tick loop until ctx is cancelled.
func (h *House) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := h.tick(ctx, now); err != nil {
				h.logger.Error("tick failed", "error", err)
			}
			if overrun := time.Since(now); overrun > h.cfg.TickPeriod {
				h.logger.Warn("tick overran period", "overrun", overrun, "tick_period", h.cfg.TickPeriod)
			}
		}
	}
}

// tick resolves every commodity's book concurrently, one errgroup
// goroutine per commodity with no concurrency limit (spec §5: "fine-grained
// per-commodity locks are acceptable and recommended" — each commodity's
// resolution only touches its own book and history stream).
func (h *House) tick(ctx context.Context, now time.Time) error {
	nowMS := now.UnixMilli()
	commodities := h.commodities()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range commodities {
		c := c
		g.Go(func() error {
			return h.resolve(gctx, c.Name, nowMS)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("resolve commodities: %w", err)
	}
	return nil
}

func (h *House) randFloat() float64 {
	h.randMu.Lock()
	defer h.randMu.Unlock()
	return h.rand.Float64()
}
