package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// StripeGateway implements TransferGateway and RefundGateway against the
// Stripe API.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) SendTransfer(ctx context.Context, destinationAccount string, amount int64, currency, idempotencyKey string) (*TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(currency),
		Destination: stripe.String(destinationAccount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	t, err := g.api.Transfers.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe transfer to %s failed: %w", destinationAccount, normalize(err))
	}
	return &TransferResult{TransferID: t.ID}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentIntentID string, amount int64, idempotencyKey string) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund for %s failed: %w", paymentIntentID, normalize(err))
	}
	return &RefundResult{RefundID: r.ID}, nil
}

// normalize unwraps stripe's error envelope to its human-readable message.
func normalize(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.Msg != "" {
		return errors.New(sErr.Msg)
	}
	return err
}
