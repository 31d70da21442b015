package auctionhouse

import (
	"context"

	"github.com/shopspring/decimal"

	"auctionhouse/pkg/types"
)

// resolve runs one commodity's resolution for the current tick: expiry and
// validation, sort, match, tick accumulators, and history append (spec §4.1).
func (h *House) resolve(ctx context.Context, commodity string, nowMS int64) error {
	book, ok := h.bookFor(commodity)
	if !ok {
		return nil
	}

	book.bidMu.Lock()
	defer book.bidMu.Unlock()
	book.askMu.Lock()
	defer book.askMu.Unlock()

	bids, demand := h.validateBids(ctx, book.bids, nowMS)
	asks, supply := h.validateAsks(ctx, book.asks, nowMS)

	sortBidsDescending(bids)
	sortAsksAscending(asks)

	bids, asks, tradesCount, unitsTraded, avgClearingPrice, avgBuyPrice := h.match(ctx, commodity, bids, asks)

	book.bids = bids
	book.asks = asks

	h.history.AppendTick(commodity, supply, demand, tradesCount, unitsTraded, avgClearingPrice, avgBuyPrice)
	h.publishSnapshot(commodity)

	return nil
}

// validateBids runs the expiry/broker-fee/stake pass over the bid side,
// returning the surviving offers (in their original order) and the total
// demand they represent (spec §4.1 step 1).
func (h *House) validateBids(ctx context.Context, bids []*types.BidOffer, nowMS int64) ([]*types.BidOffer, decimal.Decimal) {
	surviving := make([]*types.BidOffer, 0, len(bids))
	demand := decimal.Zero

	for _, bid := range bids {
		if bid.ExpiryMS == 0 {
			bid.ExpiryMS = 1
			bid.BrokerFeePaid = true
		} else if bid.ExpiryMS < nowMS {
			h.closeBidUnfilled(ctx, bid)
			continue
		} else if !bid.BrokerFeePaid {
			fee := bid.UnitPrice.Mul(decimal.NewFromInt(int64(bid.Quantity))).Mul(h.cfg.BrokerFee)
			taken, err := h.inv.TryTakeMoney(ctx, bid.SenderID, fee, true)
			if err != nil {
				h.logger.Warn("broker fee take failed", "sender", bid.SenderID, "error", err)
			} else if taken.GreaterThan(decimal.Zero) {
				h.addSpreadProfit(taken)
				bid.BrokerFeePaid = true
			}
		}

		needed := bid.UnitPrice.Mul(decimal.NewFromInt(int64(bid.Quantity)))
		inv, err := h.inv.GetInventory(ctx, bid.SenderID)
		if err != nil || inv.Cash.LessThan(needed) {
			h.closeBidUnfilled(ctx, bid)
			continue
		}

		demand = demand.Add(decimal.NewFromInt(int64(bid.Quantity)))
		surviving = append(surviving, bid)
	}

	return surviving, demand
}

// validateAsks is the symmetric pass over the ask side; the stake check is
// "has commodity quantity available" rather than a cash check.
func (h *House) validateAsks(ctx context.Context, asks []*types.AskOffer, nowMS int64) ([]*types.AskOffer, decimal.Decimal) {
	surviving := make([]*types.AskOffer, 0, len(asks))
	supply := decimal.Zero

	for _, ask := range asks {
		if ask.ExpiryMS == 0 {
			ask.ExpiryMS = 1
			ask.BrokerFeePaid = true
		} else if ask.ExpiryMS < nowMS {
			h.closeAskUnfilled(ctx, ask)
			continue
		} else if !ask.BrokerFeePaid {
			fee := ask.UnitPrice.Mul(decimal.NewFromInt(int64(ask.Quantity))).Mul(h.cfg.BrokerFee)
			taken, err := h.inv.TryTakeMoney(ctx, ask.SenderID, fee, true)
			if err != nil {
				h.logger.Warn("broker fee take failed", "sender", ask.SenderID, "error", err)
			} else if taken.GreaterThan(decimal.Zero) {
				h.addSpreadProfit(taken)
				ask.BrokerFeePaid = true
			}
		}

		inv, err := h.inv.GetInventory(ctx, ask.SenderID)
		if err != nil || inv.Items[ask.Commodity].Quantity < ask.Quantity {
			h.closeAskUnfilled(ctx, ask)
			continue
		}

		supply = supply.Add(decimal.NewFromInt(int64(ask.Quantity)))
		surviving = append(surviving, ask)
	}

	return surviving, supply
}

// match pairs the best bid against the best ask while the ask's price does
// not exceed the bid's, settling each pair and accumulating the tick's
// volume-weighted price series (spec §4.1 steps 3-4). A settlement failure
// on either side closes the failing offer and stops matching for the tick —
// grounded in the original's ResolveOffers, which breaks its match loop
// rather than skipping to the next pair.
func (h *House) match(ctx context.Context, commodity string, bids []*types.BidOffer, asks []*types.AskOffer) (remainingBids []*types.BidOffer, remainingAsks []*types.AskOffer, tradesCount int, unitsTraded int, avgClearingPrice, avgBuyPrice decimal.Decimal) {
	avgClearingPrice = decimal.Zero
	avgBuyPrice = decimal.Zero

	for len(bids) > 0 && len(asks) > 0 {
		bid := bids[0]
		ask := asks[0]

		if ask.UnitPrice.GreaterThan(bid.UnitPrice) {
			break
		}

		q := bid.Quantity
		if ask.Quantity < q {
			q = ask.Quantity
		}
		price := ask.UnitPrice

		if q <= 0 {
			break
		}

		result, err := h.settle(ctx, commodity, bid.SenderID, ask.SenderID, q, price)
		if err != nil {
			h.logger.Warn("settlement error", "commodity", commodity, "buyer", bid.SenderID, "seller", ask.SenderID, "error", err)
		}

		switch result {
		case SettleSellerFail:
			h.closeAskUnfilled(ctx, ask)
			asks = asks[1:]
			return bids, asks, tradesCount, unitsTraded, avgClearingPrice, avgBuyPrice
		case SettleBuyerFail:
			h.closeBidUnfilled(ctx, bid)
			bids = bids[1:]
			return bids, asks, tradesCount, unitsTraded, avgClearingPrice, avgBuyPrice
		}

		bid.Quantity -= q
		ask.Quantity -= q

		qDec := decimal.NewFromInt(int64(q))
		totalBefore := decimal.NewFromInt(int64(unitsTraded))
		newTotal := totalBefore.Add(qDec)
		avgClearingPrice = avgClearingPrice.Mul(totalBefore).Add(price.Mul(qDec)).Div(newTotal)
		avgBuyPrice = avgBuyPrice.Mul(totalBefore).Add(bid.UnitPrice.Mul(qDec)).Div(newTotal)

		unitsTraded += q
		tradesCount++

		updateBidResultOnTrade(&bid.Result, q, price)
		updateAskResultOnTrade(&ask.Result, q, price)

		if bid.Quantity <= 0 {
			h.closeBidFilled(ctx, bid)
			bids = bids[1:]
		}
		if ask.Quantity <= 0 {
			h.closeAskFilled(ctx, ask)
			asks = asks[1:]
		}
	}

	return bids, asks, tradesCount, unitsTraded, avgClearingPrice, avgBuyPrice
}

func updateBidResultOnTrade(r *types.BidResult, quantity int, price decimal.Decimal) {
	qDec := decimal.NewFromInt(int64(quantity))
	totalBefore := decimal.NewFromInt(int64(r.QuantityTraded))
	newTotal := totalBefore.Add(qDec)
	if newTotal.IsPositive() {
		r.AverageTradedPrice = r.AverageTradedPrice.Mul(totalBefore).Add(price.Mul(qDec)).Div(newTotal)
	}
	r.QuantityTraded += quantity
	r.BoughtPrice = price
}

func updateAskResultOnTrade(r *types.AskResult, quantity int, price decimal.Decimal) {
	qDec := decimal.NewFromInt(int64(quantity))
	totalBefore := decimal.NewFromInt(int64(r.QuantityTraded))
	newTotal := totalBefore.Add(qDec)
	if newTotal.IsPositive() {
		r.AverageTradedPrice = r.AverageTradedPrice.Mul(totalBefore).Add(price.Mul(qDec)).Div(newTotal)
	}
	r.QuantityTraded += quantity
}

// closeBidUnfilled, closeBidFilled, closeAskUnfilled, closeAskFilled mark the
// offer's terminal state, fill in its untraded quantity, and fire the
// Report* command to the sender exactly once (spec §4.1 state machine).

func (h *House) closeBidUnfilled(ctx context.Context, bid *types.BidOffer) {
	bid.State = types.StateClosedUnfilled
	bid.Result.SenderID = bid.SenderID
	bid.Result.Commodity = bid.Commodity
	bid.Result.QuantityUntraded = bid.Quantity
	bid.Result.BrokerFeePaid = bid.BrokerFeePaid
	h.reportBid(ctx, bid)
}

func (h *House) closeBidFilled(ctx context.Context, bid *types.BidOffer) {
	bid.State = types.StateClosedFilled
	bid.Result.SenderID = bid.SenderID
	bid.Result.Commodity = bid.Commodity
	bid.Result.QuantityUntraded = bid.Quantity
	bid.Result.BrokerFeePaid = bid.BrokerFeePaid
	h.reportBid(ctx, bid)
}

func (h *House) closeAskUnfilled(ctx context.Context, ask *types.AskOffer) {
	ask.State = types.StateClosedUnfilled
	ask.Result.SenderID = ask.SenderID
	ask.Result.Commodity = ask.Commodity
	ask.Result.QuantityUntraded = ask.Quantity
	ask.Result.BrokerFeePaid = ask.BrokerFeePaid
	h.reportAsk(ctx, ask)
}

func (h *House) closeAskFilled(ctx context.Context, ask *types.AskOffer) {
	ask.State = types.StateClosedFilled
	ask.Result.SenderID = ask.SenderID
	ask.Result.Commodity = ask.Commodity
	ask.Result.QuantityUntraded = ask.Quantity
	ask.Result.BrokerFeePaid = ask.BrokerFeePaid
	h.reportAsk(ctx, ask)
}

// reportBid and reportAsk push a ReportBidOffer/ReportAskOffer command to the
// offer's sender exactly once (spec P6), fire-and-forget: the house doesn't
// block resolution on a slow or unreachable trader.
func (h *House) reportBid(ctx context.Context, bid *types.BidOffer) {
	if bid.Result.ReportedAlready() {
		return
	}
	bid.Result.MarkReported()
	payload := map[string]any{
		"commodity":          bid.Commodity,
		"quantity_traded":    bid.Result.QuantityTraded,
		"quantity_untraded":  bid.Result.QuantityUntraded,
		"bought_price":       bid.Result.BoughtPrice,
		"broker_fee_paid":    bid.Result.BrokerFeePaid,
	}
	go h.deliverReport(ctx, bid.SenderID, "ReportBidOffer", payload)
}

func (h *House) reportAsk(ctx context.Context, ask *types.AskOffer) {
	if ask.Result.ReportedAlready() {
		return
	}
	ask.Result.MarkReported()
	payload := map[string]any{
		"commodity":         ask.Commodity,
		"quantity_traded":   ask.Result.QuantityTraded,
		"quantity_untraded": ask.Result.QuantityUntraded,
		"avg_price":         ask.Result.AverageTradedPrice,
		"broker_fee_paid":   ask.Result.BrokerFeePaid,
	}
	go h.deliverReport(ctx, ask.SenderID, "ReportAskOffer", payload)
}

func (h *House) deliverReport(ctx context.Context, senderID int, command string, payload map[string]any) {
	if _, err := h.fab.SendCommand(ctx, senderID, command, payload, h.cfg.StageTimeout); err != nil {
		h.logger.Debug("report delivery failed", "command", command, "sender", senderID, "error", err)
	}
}

// publishSnapshot pushes the per-commodity market snapshot component update
// after resolution (spec §4.1 "per-tick publication"), and, if a dashboard
// publisher is attached, forwards the same snapshot for live broadcast.
func (h *House) publishSnapshot(commodity string) {
	snapshot := h.buildPriceInfo(commodity)

	ctx := context.Background()
	if err := h.fab.SendComponentUpdate(ctx, h.marketEntityID, "market_snapshot_"+commodity, snapshot); err != nil {
		h.logger.Debug("snapshot publish failed", "commodity", commodity, "error", err)
	}

	if pub := h.dashboardPublisher(); pub != nil {
		pub.PublishSnapshot(snapshot)
	}
}
