package models

import "time"

// RefundRequest statuses.
const (
	RefundStatusPending    = "pending"
	RefundStatusApproved   = "approved"
	RefundStatusRejected   = "rejected"
	RefundStatusProcessing = "processing"
	RefundStatusCompleted  = "completed"
)

// RefundRequest is one buyer refund ask against a payment. Approval is
// bounded by the payment's remaining refundable balance at approval time.
type RefundRequest struct {
	ID             uint   `gorm:"primarykey" json:"id"`
	PaymentID      uint   `gorm:"not null;index" json:"payment_id"`
	RequesterID    uint   `gorm:"not null;index" json:"requester_id"`
	Amount         int64  `gorm:"not null" json:"amount"`
	Reason         string `json:"reason"`
	Status         string `gorm:"not null;default:'pending';index" json:"status"`
	StripeRefundID string `gorm:"index" json:"stripe_refund_id,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
	ReviewedBy     *uint  `json:"reviewed_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Open reports whether the request still awaits an admin decision.
func (r *RefundRequest) Open() bool {
	return r.Status == RefundStatusPending
}
