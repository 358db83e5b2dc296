package payment

import (
	"context"

	"paylock/internal/models"
)

// CreateParams describes a capture attempt recorded by the checkout
// collaborator.
type CreateParams struct {
	OrderID         uint   `json:"order_id" validate:"required"`
	BuyerID         uint   `json:"buyer_id" validate:"required"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	Currency        string `json:"currency" validate:"required,len=3"`
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// ReleaseOptions controls the release transition. Manual bypasses the
// hold-maturity time guard only; every other guard still applies.
type ReleaseOptions struct {
	Manual bool
}

// ReleaseResult reports the outcome of a release request.
type ReleaseResult struct {
	Payment         *models.Payment
	Payouts         []models.SellerPayout
	AlreadyReleased bool
}

// Service owns the payment lifecycle. Every transition runs inside the
// serialized transaction runner and treats "already at or past the target
// state" as success, because gateway events arrive at-least-once and out of
// order.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Payment, error)
	MarkSucceeded(ctx context.Context, intentID string) (*models.Payment, error)
	MarkFailed(ctx context.Context, intentID, reason string) error
	Release(ctx context.Context, paymentID uint, opts ReleaseOptions) (*ReleaseResult, error)
	Get(ctx context.Context, id uint) (*models.Payment, error)
}

// Cache is the subset of the cache service the payment service needs.
type Cache interface {
	GetPayment(ctx context.Context, id uint) (*models.Payment, error)
	SetPayment(ctx context.Context, p *models.Payment) error
	InvalidatePayment(ctx context.Context, id uint) error
}
