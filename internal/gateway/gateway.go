// Package gateway wraps the external money-movement provider. Services
// depend on the interfaces; the stripe implementation lives behind them so
// tests can substitute mocks and a submission failure is always attributable
// to one payout or refund row.
package gateway

import "context"

// TransferResult is the provider's answer to a transfer submission.
type TransferResult struct {
	TransferID string
}

// RefundResult is the provider's answer to a refund submission.
type RefundResult struct {
	RefundID string
}

// TransferGateway submits seller transfers. The idempotency key is the
// SellerPayout id, so retrying the same submission can never move money
// twice.
type TransferGateway interface {
	SendTransfer(ctx context.Context, destinationAccount string, amount int64, currency, idempotencyKey string) (*TransferResult, error)
}

// RefundGateway submits refunds against the original payment intent.
type RefundGateway interface {
	Refund(ctx context.Context, paymentIntentID string, amount int64, idempotencyKey string) (*RefundResult, error)
}
