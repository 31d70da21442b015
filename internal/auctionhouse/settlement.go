package auctionhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/fabric"
)

// SettlementResult is the outcome of one settle() call (spec §4.2).
type SettlementResult int

const (
	SettleOK SettlementResult = iota
	SettleSellerFail
	SettleBuyerFail
)

func (r SettlementResult) String() string {
	switch r {
	case SettleOK:
		return "OK"
	case SettleSellerFail:
		return "SELLER_FAIL"
	case SettleBuyerFail:
		return "BUYER_FAIL"
	default:
		return "UNKNOWN"
	}
}

// settle moves quantity units of commodity from seller to buyer at
// clearingPrice, splitting proceeds between the seller and the house's
// spread_profit via sales tax (spec §4.2). Each step is an atomic
// read-modify-write against the Fabric-held inventories; on buyer failure the
// commodity already taken from the seller is returned (a compensating write,
// not a distributed lock — spec §5).
func (h *House) settle(ctx context.Context, commodity string, buyerID, sellerID fabric.EntityID, quantity int, clearingPrice decimal.Decimal) (SettlementResult, error) {
	taken, err := h.inv.TryTakeCommodity(ctx, sellerID, commodity, quantity, true)
	if err != nil {
		return SettleSellerFail, fmt.Errorf("take commodity from seller %d: %w", sellerID, err)
	}
	if taken < quantity {
		return SettleSellerFail, nil
	}

	cost := clearingPrice.Mul(decimal.NewFromInt(int64(quantity)))
	paid, err := h.inv.TryTakeMoney(ctx, buyerID, cost, true)
	if err != nil {
		// best-effort compensating write: return the commodity to the seller
		if _, rerr := h.inv.TryAddCommodity(ctx, sellerID, commodity, quantity, clearingPrice); rerr != nil {
			return SettleBuyerFail, fmt.Errorf("take cash from buyer %d: %w (compensating return also failed: %v)", buyerID, err, rerr)
		}
		return SettleBuyerFail, fmt.Errorf("take cash from buyer %d: %w", buyerID, err)
	}
	if paid.LessThan(cost) {
		if _, rerr := h.inv.TryAddCommodity(ctx, sellerID, commodity, quantity, clearingPrice); rerr != nil {
			return SettleBuyerFail, fmt.Errorf("compensating return to seller %d failed: %w", sellerID, rerr)
		}
		return SettleBuyerFail, nil
	}

	// Overflow beyond the buyer's remaining capacity is lost, not rolled back
	// (spec §4.2 rationale): once taken from the seller, goods are gone.
	if _, err := h.inv.TryAddCommodity(ctx, buyerID, commodity, quantity, clearingPrice); err != nil {
		return SettleOK, fmt.Errorf("credit commodity to buyer %d: %w", buyerID, err)
	}

	tax := cost.Mul(h.cfg.SalesTax)
	sellerProceeds := cost.Sub(tax)
	if err := h.inv.AddMoney(ctx, sellerID, sellerProceeds); err != nil {
		return SettleOK, fmt.Errorf("credit seller %d: %w", sellerID, err)
	}
	h.addSpreadProfit(tax)

	return SettleOK, nil
}
