package models

import (
	"time"
)

// Payment statuses. A payment walks created → pending → succeeded → held →
// released → payout_initiated → settled; failed, cancelled, refunded and
// partially_refunded branch off succeeded/held/released.
const (
	PaymentStatusCreated           = "created"
	PaymentStatusPending           = "pending"
	PaymentStatusSucceeded         = "succeeded"
	PaymentStatusHeld              = "held"
	PaymentStatusReleased          = "released"
	PaymentStatusPayoutInitiated   = "payout_initiated"
	PaymentStatusSettled           = "settled"
	PaymentStatusFailed            = "failed"
	PaymentStatusCancelled         = "cancelled"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusPartiallyRefunded = "partially_refunded"
)

// Payment is the root settlement entity, one per checkout capture attempt.
// Amounts are in the currency's smallest unit. Rows are never deleted.
type Payment struct {
	ID                    uint   `gorm:"primarykey" json:"id"`
	OrderID               uint   `gorm:"not null;index" json:"order_id"`
	BuyerID               uint   `gorm:"not null;index" json:"buyer_id"`
	Amount                int64  `gorm:"not null" json:"amount"`
	ApplicationFee        int64  `gorm:"default:0" json:"application_fee"`
	Currency              string `gorm:"not null;default:'usd'" json:"currency"`
	Status                string `gorm:"not null;default:'created';index" json:"status"`
	StripePaymentIntentID string `gorm:"uniqueIndex;not null" json:"stripe_payment_intent_id"`
	IsHeld                bool   `gorm:"default:false;index" json:"is_held"`
	HoldUntil             *time.Time `gorm:"index" json:"hold_until"`
	HoldReleasedAt        *time.Time `json:"hold_released_at"`
	AmountRefunded        int64      `gorm:"default:0" json:"amount_refunded"`
	NeedsReconciliation   bool       `gorm:"default:false" json:"needs_reconciliation"`
	FailureReason         string     `json:"failure_reason,omitempty"`
	Metadata              JSON       `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// RefundableAmount is the balance still available for refund approval.
func (p *Payment) RefundableAmount() int64 {
	return p.Amount - p.AmountRefunded
}

// HoldMatured reports whether the hold window has elapsed at the given time.
func (p *Payment) HoldMatured(now time.Time) bool {
	return p.HoldUntil != nil && !now.Before(*p.HoldUntil)
}

// Releasable reports whether the payment is in a state the release
// transition accepts. The time guard is checked separately so manual
// release can bypass it.
func (p *Payment) Releasable() bool {
	if !p.IsHeld {
		return false
	}
	return p.Status == PaymentStatusSucceeded || p.Status == PaymentStatusHeld
}

// AtOrPastRelease reports whether the payment already went through release,
// so a second release request is a no-op rather than a conflict.
func (p *Payment) AtOrPastRelease() bool {
	switch p.Status {
	case PaymentStatusReleased, PaymentStatusPayoutInitiated, PaymentStatusSettled:
		return true
	}
	return false
}
