package payout

import (
	"fmt"
	"sort"

	errs "paylock/internal/errors"
	"paylock/internal/models"

	"github.com/shopspring/decimal"
)

// FanOut is the result of splitting one released payment across sellers.
type FanOut struct {
	Payouts  []*models.SellerPayout
	TotalFee int64
}

// BuildPayouts groups a payment's order items by seller and computes one
// payout per group. The platform fee is taken per item at feeBps basis
// points, rounded half-to-even; residual minor units between the payment
// amount and the item subtotals go to the fee ledger. The conservation
// invariant sum(net) + totalFee == payment.Amount holds exactly or an error
// is returned.
func BuildPayouts(p *models.Payment, items []models.OrderItem, feeBps int64) (*FanOut, error) {
	if len(items) == 0 {
		return nil, errs.Validation("order %d has no items to fan out", p.OrderID)
	}
	if feeBps < 0 || feeBps > 10000 {
		return nil, errs.Validation("fee rate %d bps out of range", feeBps)
	}

	type group struct {
		sellerID  uint
		accountID string
		subtotal  int64
		fee       int64
		itemIDs   []interface{}
	}

	groups := make(map[uint]*group)
	rate := decimal.NewFromInt(feeBps).Div(decimal.NewFromInt(10000))
	var itemTotal int64

	for _, item := range items {
		if item.Subtotal < 0 {
			return nil, errs.Validation("order item %d has negative subtotal", item.ID)
		}
		g, ok := groups[item.SellerID]
		if !ok {
			g = &group{sellerID: item.SellerID, accountID: item.StripeAccountID}
			groups[item.SellerID] = g
		}
		fee := decimal.NewFromInt(item.Subtotal).Mul(rate).RoundBank(0).IntPart()
		g.subtotal += item.Subtotal
		g.fee += fee
		g.itemIDs = append(g.itemIDs, item.ID)
		itemTotal += item.Subtotal
	}

	residual := p.Amount - itemTotal
	if residual < 0 {
		return nil, errs.Validation("order items total %d exceeds payment amount %d", itemTotal, p.Amount)
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].sellerID < ordered[j].sellerID })

	out := &FanOut{TotalFee: residual}
	var netTotal int64
	for _, g := range ordered {
		net := g.subtotal - g.fee
		out.Payouts = append(out.Payouts, &models.SellerPayout{
			PaymentID:       p.ID,
			SellerID:        g.sellerID,
			StripeAccountID: g.accountID,
			NetAmount:       net,
			FeeAmount:       g.fee,
			Currency:        p.Currency,
			OrderItemIDs:    models.JSON{"ids": g.itemIDs},
			Status:          models.PayoutStatusPending,
		})
		out.TotalFee += g.fee
		netTotal += net
	}

	if netTotal+out.TotalFee != p.Amount {
		return nil, fmt.Errorf("fan-out does not conserve payment %d: net %d + fee %d != %d",
			p.ID, netTotal, out.TotalFee, p.Amount)
	}
	return out, nil
}
