package auctionhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/fabric"
	"auctionhouse/pkg/types"
)

type offerRequest struct {
	SenderID  fabric.EntityID `json:"sender_id"`
	Commodity string          `json:"commodity"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ExpiryMS  int64           `json:"expiry_ms"`
}

type offerResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func decodeOfferRequest(payload any) (offerRequest, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return offerRequest{}, fmt.Errorf("expected object payload")
	}
	price, _ := decimal.NewFromString(fmt.Sprint(m["unit_price"]))
	return offerRequest{
		SenderID:  int(asFloat(m["sender_id"])),
		Commodity: asString(m["commodity"]),
		Quantity:  int(asFloat(m["quantity"])),
		UnitPrice: price,
		ExpiryMS:  int64(asFloat(m["expiry_ms"])),
	}, nil
}

// handleMakeBidOffer validates the commodity is known and delegates
// synchronous quantity/price validation to Book.SubmitBid (spec §6).
func (h *House) handleMakeBidOffer(ctx context.Context, senderID fabric.EntityID, payload any) (any, error) {
	req, err := decodeOfferRequest(payload)
	if err != nil {
		return offerResponse{Accepted: false, Reason: err.Error()}, nil
	}
	if req.SenderID == 0 {
		req.SenderID = senderID
	}

	book, ok := h.bookFor(req.Commodity)
	if !ok {
		return offerResponse{Accepted: false, Reason: "unknown commodity"}, nil
	}

	offer := &types.BidOffer{
		SenderID:  req.SenderID,
		Commodity: req.Commodity,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		ExpiryMS:  req.ExpiryMS,
	}
	if err := book.SubmitBid(offer); err != nil {
		return offerResponse{Accepted: false, Reason: err.Error()}, nil
	}
	return offerResponse{Accepted: true}, nil
}

// handleMakeAskOffer is the ask-side twin of handleMakeBidOffer.
func (h *House) handleMakeAskOffer(ctx context.Context, senderID fabric.EntityID, payload any) (any, error) {
	req, err := decodeOfferRequest(payload)
	if err != nil {
		return offerResponse{Accepted: false, Reason: err.Error()}, nil
	}
	if req.SenderID == 0 {
		req.SenderID = senderID
	}

	book, ok := h.bookFor(req.Commodity)
	if !ok {
		return offerResponse{Accepted: false, Reason: "unknown commodity"}, nil
	}

	offer := &types.AskOffer{
		SenderID:  req.SenderID,
		Commodity: req.Commodity,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		ExpiryMS:  req.ExpiryMS,
	}
	if err := book.SubmitAsk(offer); err != nil {
		return offerResponse{Accepted: false, Reason: err.Error()}, nil
	}
	return offerResponse{Accepted: true}, nil
}
