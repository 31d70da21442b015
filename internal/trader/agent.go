// Package trader implements the Trader Agent side of the simulation.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/config"
	"auctionhouse/internal/fabric"
	"auctionhouse/internal/money"
	"auctionhouse/pkg/types"
)

// PriceSource is the read-only market-snapshot surface an Agent polls to
// price its offers; satisfied structurally by *auctionhouse.House.
type PriceSource interface {
	PriceInfo(commodity string) types.PriceInfo
}

// Agent is one AI trader: it registers with the Auction House, then runs a
// fixed-period tick loop requesting production and generating bid/ask
// offers for every commodity it holds beliefs about (spec §4.6), grounded
// directly in AI_trader.h's Tick/GenerateOffers/CreateBid/CreateAsk.
type Agent struct {
	fab     fabric.Fabric
	houseID fabric.EntityID
	logger  *slog.Logger

	inv    fabric.InventoryStore
	prices PriceSource

	cfg       config.TradersConfig
	minPrice  decimal.Decimal
	tickPeriod time.Duration

	mu       sync.Mutex
	id       fabric.EntityID
	role     types.Role
	cash     decimal.Decimal
	beliefs  *Beliefs
	age      int64
	shutdown bool

	tradingRange map[string][]decimal.Decimal

	lastInventory types.Inventory
	lastPrices    map[string]types.PriceInfo

	rand *rand.Rand
}

// NewAgent creates an unregistered agent. Call Register before Run. inv and
// prices may be nil (an agent driven purely by SyncInventory/SyncPrice
// pushes from an external fleet runner); when non-nil, the agent polls
// them itself once per tick (spec §4.6 step 1.5, "mirror Fabric state").
func NewAgent(fab fabric.Fabric, houseID fabric.EntityID, inv fabric.InventoryStore, prices PriceSource, cfg config.TradersConfig, minPrice decimal.Decimal, tickPeriod time.Duration, logger *slog.Logger) *Agent {
	return &Agent{
		fab:          fab,
		houseID:      houseID,
		inv:          inv,
		prices:       prices,
		logger:       logger.With("component", "trader_agent"),
		cfg:          cfg,
		minPrice:     minPrice,
		tickPeriod:   tickPeriod,
		beliefs:      NewBeliefs(cfg.Alpha, decimal.NewFromFloat(cfg.MinCost)),
		tradingRange: make(map[string][]decimal.Decimal),
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Register performs the Register RPC and seeds beliefs from the assigned
// role's default ideal holdings (spec §4.5 step 6, §GLOSSARY defaults).
func (a *Agent) Register(ctx context.Context, requestedRole types.Role) error {
	resp, err := a.fab.SendCommand(ctx, a.houseID, "Register", map[string]any{
		"agent_type":     string(types.AgentAITrader),
		"requested_role": string(requestedRole),
	}, a.cfg.RegistrationStageTimeout)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	m, ok := responseMap(resp)
	if !ok {
		return fmt.Errorf("register: unexpected response shape %T", resp)
	}

	a.mu.Lock()
	a.id = int(asFloat(m["entity_id"]))
	a.role = types.Role(asString(m["assigned_role"]))
	a.mu.Unlock()

	// Report handlers are entity-scoped (fabric.Fabric.Worker) and so need
	// the assigned id, which only exists once the Register RPC returns.
	a.registerReportHandlers()

	buildings := DefaultBuildings(a.role)
	inv := DefaultInventory(a.role)
	a.mu.Lock()
	a.cash = inv.Cash
	for _, recipe := range buildings.Recipes {
		for _, p := range recipe.Produces {
			a.beliefs.Seed(p.Commodity, p.Quantity)
		}
	}
	for commodity := range inv.Items {
		if a.beliefs.Ideal(commodity) == 0 {
			a.beliefs.Seed(commodity, 1)
		}
	}
	a.mu.Unlock()

	return nil
}

// registerReportHandlers wires the commands the house sends back to a
// trader (spec §6): ReportBidOffer, ReportAskOffer, and the production
// response is instead a direct RPC reply, handled in requestProduction.
//
// These are registered through Worker(a.id), not OnCommand directly: many
// agents can share one Fabric instance (the bundled demo fleet does), and
// House.deliverReport addresses its ReportBidOffer/ReportAskOffer calls at
// the specific trader's entity id, so each agent needs its own slot rather
// than all of them colliding on the same command-name registration.
func (a *Agent) registerReportHandlers() {
	a.mu.Lock()
	id := a.id
	a.mu.Unlock()

	worker := a.fab.Worker(id)
	worker.OnCommand("ReportBidOffer", a.handleReportBidOffer)
	worker.OnCommand("ReportAskOffer", a.handleReportAskOffer)
}

func (a *Agent) handleReportBidOffer(ctx context.Context, senderID fabric.EntityID, payload any) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("bad ReportBidOffer payload")
	}
	commodity := asString(m["commodity"])
	traded := int(asFloat(m["quantity_traded"]))
	price, _ := decimal.NewFromString(fmt.Sprint(m["bought_price"]))
	a.recordTrade(commodity, traded, price)
	return map[string]bool{"ack": true}, nil
}

func (a *Agent) handleReportAskOffer(ctx context.Context, senderID fabric.EntityID, payload any) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("bad ReportAskOffer payload")
	}
	commodity := asString(m["commodity"])
	traded := int(asFloat(m["quantity_traded"]))
	price, _ := decimal.NewFromString(fmt.Sprint(m["avg_price"]))
	a.recordTrade(commodity, traded, price)
	return map[string]bool{"ack": true}, nil
}

// recordTrade appends one sample per unit traded to the observed trading
// range, capped at InternalLookback entries with oldest evicted (spec §4.6
// "Observed trading range").
func (a *Agent) recordTrade(commodity string, quantityTraded int, price decimal.Decimal) {
	if quantityTraded <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	limit := a.cfg.InternalLookback
	samples := a.tradingRange[commodity]
	for i := 0; i < quantityTraded; i++ {
		samples = append(samples, price)
	}
	if len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	a.tradingRange[commodity] = samples
}

// Run drives the tick loop until ctx is cancelled: a random startup stagger
// to spread request load, then a request-production + generate-offers pass
// every tick_period (spec §4.6, §5).
func (a *Agent) Run(ctx context.Context) error {
	stagger := time.Duration(a.rand.Int63n(int64(a.tickPeriod) + 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(stagger):
	}

	ticker := time.NewTicker(a.tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case start := <-ticker.C:
			if a.isShutdown() {
				return nil
			}
			if err := a.tick(ctx); err != nil {
				a.logger.Warn("tick failed", "error", err)
			}
			if overrun := time.Since(start); overrun > a.tickPeriod {
				a.logger.Warn("tick overran period", "overrun", overrun, "tick_period", a.tickPeriod)
			}
		}
	}
}

func (a *Agent) isShutdown() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shutdown
}

func (a *Agent) tick(ctx context.Context) error {
	a.mu.Lock()
	a.age++
	a.mu.Unlock()

	if err := a.requestProduction(ctx); err != nil {
		return err
	}
	if a.isShutdown() {
		return nil
	}

	a.syncFromFabric(ctx)

	for _, commodity := range a.beliefs.Commodities() {
		a.generateOffers(ctx, commodity)
	}
	return nil
}

// syncFromFabric mirrors the agent's own Fabric-held inventory and the
// house's latest published snapshot for every commodity it holds beliefs
// about, so queryHeld/querySpace/priceInfo reflect current state before
// generateOffers runs (spec §4.6 step 1.5). Both inv and prices are
// optional — an agent wired with neither relies solely on SyncInventory/
// SyncPrice pushes from whatever else is driving it.
func (a *Agent) syncFromFabric(ctx context.Context) {
	a.mu.Lock()
	id := a.id
	a.mu.Unlock()

	if a.inv != nil {
		if inv, err := a.inv.GetInventory(ctx, id); err == nil {
			a.SyncInventory(inv)
		} else {
			a.logger.Warn("sync inventory failed", "error", err)
		}
	}
	if a.prices != nil {
		for _, commodity := range a.beliefs.Commodities() {
			a.SyncPrice(a.prices.PriceInfo(commodity))
		}
	}
}

// requestProduction sends RequestProduction, then either requests shutdown
// (bankrupt) or updates beliefs from the response (spec §4.6 step 1).
func (a *Agent) requestProduction(ctx context.Context) error {
	a.mu.Lock()
	id := a.id
	a.mu.Unlock()

	resp, err := a.fab.SendCommand(ctx, a.houseID, "RequestProduction", map[string]any{"sender_id": id}, a.cfg.RegistrationStageTimeout)
	if err != nil {
		return fmt.Errorf("request production: %w", err)
	}
	m, ok := responseMap(resp)
	if !ok {
		return fmt.Errorf("request production: unexpected response shape %T", resp)
	}

	if bankrupt, _ := m["bankrupt"].(bool); bankrupt {
		return a.requestShutdown(ctx)
	}

	produced := toIntMap(m["produced"])
	overproduced := toIntMap(m["overproduced"])
	consumed := toIntMap(m["consumed"])

	a.mu.Lock()
	cash := a.cash
	a.mu.Unlock()
	a.beliefs.UpdateFromProduction(cash, produced, overproduced, consumed)
	return nil
}

func (a *Agent) requestShutdown(ctx context.Context) error {
	a.mu.Lock()
	id, role, age := a.id, a.role, a.age
	a.shutdown = true
	a.mu.Unlock()

	_, err := a.fab.SendCommand(ctx, a.houseID, "RequestShutdown", map[string]any{
		"entity_id": id,
		"role":      string(role),
		"age_ticks": age,
	}, a.cfg.RegistrationStageTimeout)
	return err
}

// responseMap normalises a command response to a JSON object: the in-memory
// Fabric returns handler structs as-is, httpfabric returns raw JSON.
func responseMap(resp any) (map[string]any, bool) {
	if m, ok := resp.(map[string]any); ok {
		return m, true
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

// generateOffers implements spec §4.6 step 2: post an ask for all surplus,
// and a bid scaled by shortage and desperation if there's room and need.
func (a *Agent) generateOffers(ctx context.Context, commodity string) {
	surplus := a.querySurplus(commodity)
	if surplus >= 1 {
		if offer, ok := a.createAsk(commodity); ok && offer.Quantity > 0 {
			a.sendAsk(ctx, offer)
		}
	}

	shortage := a.queryShortage(commodity)
	space := a.querySpace()
	unitSize := a.queryUnitSize(commodity)

	held := a.queryHeld(commodity)
	ideal := a.beliefs.Ideal(commodity)
	fulfillment := float64(held) / (0.001 + float64(ideal))
	if a.role == types.RoleRefiner || a.role == types.RoleBlacksmith {
		fulfillment = math.Max(0.5, fulfillment)
	}

	if fulfillment >= 1 || !unitSize.GreaterThan(decimal.Zero) || space.LessThan(unitSize) {
		return
	}

	maxLimit := shortage
	if decimal.NewFromInt(int64(shortage)).Mul(unitSize).GreaterThan(space) {
		maxLimit = int(space.Div(unitSize).IntPart())
	}
	if maxLimit <= 0 {
		return
	}

	minLimit := 0
	if held == 0 {
		minLimit = 1
	}

	daysSavings := a.cashValue().Div(decimal.NewFromFloat(20)).InexactFloat64()
	desperation := (5 / (daysSavings * daysSavings)) + 1
	desperation *= 1 - (0.4*(fulfillment-0.5))/(1+0.4*math.Abs(fulfillment-0.5))

	if offer, ok := a.createBid(commodity, minLimit, maxLimit, desperation); ok && offer.Quantity > 0 {
		a.sendBid(ctx, offer)
	}
}

func (a *Agent) createAsk(commodity string) (types.AskOffer, bool) {
	priceInfo, ok := a.priceInfo(commodity)
	if !ok {
		return types.AskOffer{}, false
	}

	fairPrice := a.beliefs.Cost(commodity).Mul(decimal.NewFromFloat(1.15))
	marketPrice := priceInfo.RecentPrice

	lo, hi := fairPrice, marketPrice
	if lo.GreaterThan(hi) {
		lo, hi = hi, lo
	}
	span := hi.Sub(lo).InexactFloat64()
	askPrice := lo.Add(decimal.NewFromFloat(a.rand.Float64() * span))
	askPrice = money.Max(a.minPrice, askPrice)

	quantity := a.querySurplus(commodity)

	a.mu.Lock()
	id := a.id
	a.mu.Unlock()

	return types.AskOffer{
		SenderID:  id,
		Commodity: commodity,
		Quantity:  quantity,
		UnitPrice: askPrice,
		ExpiryMS:  nextTickExpiry(a.tickPeriod),
	}, true
}

func (a *Agent) createBid(commodity string, minLimit, maxLimit int, desperation float64) (types.BidOffer, bool) {
	priceInfo, ok := a.priceInfo(commodity)
	if !ok {
		return types.BidOffer{}, false
	}

	fairBidPrice := priceInfo.RecentPrice
	bidPrice := fairBidPrice.Mul(decimal.NewFromFloat(desperation))
	bidPrice = money.Clamp(bidPrice, a.minPrice, a.cashValue())

	ideal := a.determineBuyQuantity(commodity, bidPrice, a.queryShortage(commodity))
	quantity := money.MaxInt(money.MinInt(ideal, maxLimit), minLimit)

	a.mu.Lock()
	id := a.id
	a.mu.Unlock()

	return types.BidOffer{
		SenderID:  id,
		Commodity: commodity,
		Quantity:  quantity,
		UnitPrice: bidPrice,
		ExpiryMS:  nextTickExpiry(a.tickPeriod),
	}, true
}

// determineBuyQuantity scales the shortage by how favorable bidPrice is
// relative to the observed trading range: the lower in the range, the more
// favorable, the larger the quantity requested (spec §4.6 "Quantity scales
// by the bid's favorability").
func (a *Agent) determineBuyQuantity(commodity string, bidPrice decimal.Decimal, shortage int) int {
	lo, hi, ok := a.observedTradingRange(commodity)
	if !ok {
		return 0
	}
	favorability := positionInRange(bidPrice.InexactFloat64(), lo, hi)
	favorability = 1 - favorability
	amount := favorability * float64(shortage)
	return int(math.Ceil(amount))
}

func (a *Agent) observedTradingRange(commodity string) (lo, hi float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	samples := a.tradingRange[commodity]
	if len(samples) == 0 {
		return 0, 0, false
	}
	lo, hi = samples[0].InexactFloat64(), samples[0].InexactFloat64()
	for _, s := range samples {
		f := s.InexactFloat64()
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	return lo, hi, true
}

func positionInRange(value, lo, hi float64) float64 {
	value -= lo
	span := hi - lo
	if span == 0 {
		return 0
	}
	v := value / span
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

func nextTickExpiry(tickPeriod time.Duration) int64 {
	return time.Now().Add(tickPeriod).UnixMilli()
}

func (a *Agent) sendBid(ctx context.Context, offer types.BidOffer) {
	_, err := a.fab.SendCommand(ctx, a.houseID, "MakeBidOffer", map[string]any{
		"sender_id":  offer.SenderID,
		"commodity":  offer.Commodity,
		"quantity":   offer.Quantity,
		"unit_price": offer.UnitPrice,
		"expiry_ms":  offer.ExpiryMS,
	}, a.cfg.RegistrationStageTimeout)
	if err != nil {
		a.logger.Warn("make bid offer failed", "commodity", offer.Commodity, "error", err)
	}
}

func (a *Agent) sendAsk(ctx context.Context, offer types.AskOffer) {
	_, err := a.fab.SendCommand(ctx, a.houseID, "MakeAskOffer", map[string]any{
		"sender_id":  offer.SenderID,
		"commodity":  offer.Commodity,
		"quantity":   offer.Quantity,
		"unit_price": offer.UnitPrice,
		"expiry_ms":  offer.ExpiryMS,
	}, a.cfg.RegistrationStageTimeout)
	if err != nil {
		a.logger.Warn("make ask offer failed", "commodity", offer.Commodity, "error", err)
	}
}

func (a *Agent) cashValue() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

func (a *Agent) querySurplus(commodity string) int {
	held := a.queryHeld(commodity)
	ideal := a.beliefs.Ideal(commodity)
	if held-ideal > 0 {
		return held - ideal
	}
	return 0
}

func (a *Agent) queryShortage(commodity string) int {
	held := a.queryHeld(commodity)
	ideal := a.beliefs.Ideal(commodity)
	if ideal-held > 0 {
		return ideal - held
	}
	return 0
}

// queryHeld, querySpace, and queryUnitSize read the trader's own
// Fabric-held inventory snapshot. It's mirrored into lastInventory once per
// tick by syncFromFabric (or pushed externally via SyncInventory, for an
// agent built with a nil InventoryStore) rather than held as Agent's own
// source of truth, since every quantity query must reflect the
// authoritative Fabric state.
func (a *Agent) queryHeld(commodity string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastInventory.Items == nil {
		return 0
	}
	return a.lastInventory.Items[commodity].Quantity
}

func (a *Agent) querySpace() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return remainingCapacityLocked(a.lastInventory)
}

func (a *Agent) queryUnitSize(commodity string) decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastInventory.Items == nil {
		return decimal.Zero
	}
	size := a.lastInventory.Items[commodity].UnitSize
	if size.IsZero() {
		return decimal.NewFromInt(1)
	}
	return size
}

func (a *Agent) priceInfo(commodity string) (types.PriceInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	info, ok := a.lastPrices[commodity]
	return info, ok
}

// SyncInventory lets the driving fleet push the latest Fabric-observed
// inventory snapshot into the agent between ticks.
func (a *Agent) SyncInventory(inv types.Inventory) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastInventory = inv
	a.cash = inv.Cash
}

// SyncPrice lets the driving fleet push the latest published market
// snapshot for a commodity into the agent.
func (a *Agent) SyncPrice(info types.PriceInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastPrices == nil {
		a.lastPrices = make(map[string]types.PriceInfo)
	}
	a.lastPrices[info.Commodity] = info
}

func toIntMap(v any) map[string]int {
	out := map[string]int{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, raw := range m {
		out[k] = int(asFloat(raw))
	}
	return out
}

func remainingCapacityLocked(inv types.Inventory) decimal.Decimal {
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

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
