// Package auctionhouse implements the central matcher: per-commodity
// double-sided order books, atomic settlement against Fabric-held
// inventories, the per-tick production step, and the trader registration and
// shutdown lifecycle (spec §4).
//
// Book is the authoritative per-commodity order book. Unlike the teacher's
// market.Book (a read-only mirror of someone else's book fed by WebSocket
// snapshots), this Book is the source of truth: offers are only ever
// created, matched, and closed here.
package auctionhouse

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"auctionhouse/pkg/types"
)

// ErrBadOffer is returned by SubmitBid/SubmitAsk on synchronous validation
// failure (spec §4.1: quantity<=0, unit_price<=0).
type ErrBadOffer struct{ Reason string }

func (e *ErrBadOffer) Error() string { return "bad offer: " + e.Reason }

// Book holds the bid and ask sides for a single commodity. Per spec §5, two
// locks are sufficient: one for the bid side, one for the ask side. Both
// must be held (bidMu first, then askMu, to avoid inconsistent lock
// ordering across commodities) during resolution.
type Book struct {
	bidMu sync.Mutex
	askMu sync.Mutex

	bids []*types.BidOffer
	asks []*types.AskOffer

	seq atomic.Uint64 // monotonic submission sequence, the FIFO tiebreaker (spec §9 open question 2)
}

// NewBook creates an empty order book for one commodity.
func NewBook() *Book {
	return &Book{}
}

// SubmitBid validates and appends a bid. Returns ErrBadOffer synchronously
// for quantity<=0 or unit_price<=0; the caller is responsible for the
// "commodity unknown" check, since Book has no notion of the registry.
func (b *Book) SubmitBid(offer *types.BidOffer) error {
	if offer.Quantity <= 0 {
		return &ErrBadOffer{Reason: "quantity must be > 0"}
	}
	if offer.UnitPrice.LessThanOrEqual(decimal.Zero) {
		return &ErrBadOffer{Reason: "unit_price must be > 0"}
	}

	offer.Seq = b.seq.Add(1)
	offer.State = types.StateOpen

	b.bidMu.Lock()
	defer b.bidMu.Unlock()
	b.bids = append(b.bids, offer)
	return nil
}

// SubmitAsk validates and appends an ask.
func (b *Book) SubmitAsk(offer *types.AskOffer) error {
	if offer.Quantity <= 0 {
		return &ErrBadOffer{Reason: "quantity must be > 0"}
	}
	if offer.UnitPrice.LessThanOrEqual(decimal.Zero) {
		return &ErrBadOffer{Reason: "unit_price must be > 0"}
	}

	offer.Seq = b.seq.Add(1)
	offer.State = types.StateOpen

	b.askMu.Lock()
	defer b.askMu.Unlock()
	b.asks = append(b.asks, offer)
	return nil
}

// sortBidsDescending sorts by unit_price descending, ties broken by earlier
// submission sequence (FIFO). Caller must hold bidMu.
func sortBidsDescending(bids []*types.BidOffer) {
	sort.SliceStable(bids, func(i, j int) bool {
		if !bids[i].UnitPrice.Equal(bids[j].UnitPrice) {
			return bids[i].UnitPrice.GreaterThan(bids[j].UnitPrice)
		}
		return bids[i].Seq < bids[j].Seq
	})
}

// sortAsksAscending sorts by unit_price ascending, ties broken by earlier
// submission sequence (FIFO). Caller must hold askMu.
func sortAsksAscending(asks []*types.AskOffer) {
	sort.SliceStable(asks, func(i, j int) bool {
		if !asks[i].UnitPrice.Equal(asks[j].UnitPrice) {
			return asks[i].UnitPrice.LessThan(asks[j].UnitPrice)
		}
		return asks[i].Seq < asks[j].Seq
	})
}

// debugCounts reports book depth; used by tests.
func (b *Book) debugCounts() (bids, asks int) {
	b.bidMu.Lock()
	bids = len(b.bids)
	b.bidMu.Unlock()
	b.askMu.Lock()
	asks = len(b.asks)
	b.askMu.Unlock()
	return
}
