package models

import "time"

// SellerPayout statuses.
const (
	PayoutStatusPending    = "pending"
	PayoutStatusProcessing = "processing"
	PayoutStatusPaid       = "paid"
	PayoutStatusFailed     = "failed"
)

// SellerPayout is one seller's share of one released payment. The unique
// index on (payment_id, seller_id) is what makes fan-out safe against
// replayed release triggers.
type SellerPayout struct {
	ID               uint   `gorm:"primarykey" json:"id"`
	PaymentID        uint   `gorm:"not null;uniqueIndex:idx_payout_payment_seller;index" json:"payment_id"`
	SellerID         uint   `gorm:"not null;uniqueIndex:idx_payout_payment_seller" json:"seller_id"`
	StripeAccountID  string `gorm:"not null" json:"stripe_account_id"`
	NetAmount        int64  `gorm:"not null" json:"net_amount"`
	FeeAmount        int64  `gorm:"not null" json:"fee_amount"`
	Currency         string `gorm:"not null;default:'usd'" json:"currency"`
	OrderItemIDs     JSON   `gorm:"type:jsonb" json:"order_item_ids"`
	Status           string `gorm:"not null;default:'pending';index" json:"status"`
	StripeTransferID string `gorm:"index" json:"stripe_transfer_id,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
	PaidAt           *time.Time `json:"paid_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Submittable reports whether the payout can be handed to the transfer
// gateway: pending rows from a fresh release, or failed rows being retried.
func (p *SellerPayout) Submittable() bool {
	return p.Status == PayoutStatusPending || p.Status == PayoutStatusFailed
}
