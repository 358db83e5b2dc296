// Package webhook ingests signed gateway events exactly once. The unique
// insert on the event id is the dedup mechanism; dispatch routes each event
// type to its state-machine handler. Failed events stay retryable through
// the sender's own redelivery.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"paylock/internal/clock"
	errs "paylock/internal/errors"
	"paylock/internal/models"
	"paylock/internal/repositories"

	"github.com/stripe/stripe-go/v72"
	stripewebhook "github.com/stripe/stripe-go/v72/webhook"
)

// Event types this engine dispatches.
const (
	TypePaymentSucceeded = "payment_intent.succeeded"
	TypePaymentFailed    = "payment_intent.payment_failed"
	TypeTransferPaid     = "transfer.paid"
	TypeTransferFailed   = "transfer.failed"
	TypeChargeRefunded   = "charge.refunded"
)

// PaymentHandler applies payment-intent events.
type PaymentHandler interface {
	MarkSucceeded(ctx context.Context, intentID string) (*models.Payment, error)
	MarkFailed(ctx context.Context, intentID, reason string) error
}

// PayoutHandler applies transfer-completion events.
type PayoutHandler interface {
	HandleTransferPaid(ctx context.Context, transferID string) error
	HandleTransferFailed(ctx context.Context, transferID, reason string) error
}

// RefundHandler applies refund confirmations.
type RefundHandler interface {
	HandleRefundSucceeded(ctx context.Context, stripeRefundID string) error
}

// VerifyFunc checks the event signature and parses the envelope. Production
// uses stripe's ConstructEvent; tests inject a stub.
type VerifyFunc func(payload []byte, sigHeader, secret string) (stripe.Event, error)

type Config struct {
	Events   repositories.WebhookEventRepository
	Payments PaymentHandler
	Payouts  PayoutHandler
	Refunds  RefundHandler
	Clock    clock.Clock
	Secret   string
	Verify   VerifyFunc
}

// Service is the idempotency guard plus dispatcher.
type Service struct {
	events   repositories.WebhookEventRepository
	payments PaymentHandler
	payouts  PayoutHandler
	refunds  RefundHandler
	clock    clock.Clock
	secret   string
	verify   VerifyFunc
}

func NewService(cfg Config) *Service {
	if cfg.Events == nil {
		panic("webhook event repository is required")
	}
	if cfg.Payments == nil {
		panic("payment handler is required")
	}
	if cfg.Payouts == nil {
		panic("payout handler is required")
	}
	if cfg.Refunds == nil {
		panic("refund handler is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Verify == nil {
		cfg.Verify = stripewebhook.ConstructEvent
	}
	return &Service{
		events:   cfg.Events,
		payments: cfg.Payments,
		payouts:  cfg.Payouts,
		refunds:  cfg.Refunds,
		clock:    cfg.Clock,
		secret:   cfg.Secret,
		verify:   cfg.Verify,
	}
}

// Ingest verifies, deduplicates and dispatches one raw event. A replayed
// event that already processed is a clean no-op; a concurrent duplicate
// loses the unique insert and exits the same way. Dispatch failures mark
// the event failed and propagate, so the sender's retry-on-non-200 gives
// the engine another attempt.
func (s *Service) Ingest(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.verify(payload, sigHeader, s.secret)
	if err != nil {
		return errs.Validation("webhook signature verification failed: %v", err)
	}

	var body models.JSON
	if err := json.Unmarshal(payload, &body); err != nil {
		return errs.Validation("webhook payload is not valid JSON: %v", err)
	}

	ev := &models.WebhookEvent{
		StripeEventID: event.ID,
		Type:          string(event.Type),
		Payload:       body,
		Status:        models.WebhookStatusReceived,
	}
	if err := s.events.Insert(ctx, ev); err != nil {
		if !errors.Is(err, repositories.ErrEventExists) {
			return err
		}
		existing, getErr := s.events.GetByStripeID(ctx, event.ID)
		if getErr != nil {
			return getErr
		}
		switch existing.Status {
		case models.WebhookStatusProcessed:
			// Exactly-once processing: redelivery of a done event.
			return nil
		case models.WebhookStatusReceived:
			// A concurrent writer holds it; let them finish.
			return nil
		}
		// Previously failed; take it over for another attempt.
		ev = existing
		if err := s.events.MarkReceived(ctx, ev); err != nil {
			return err
		}
	}

	if err := s.dispatch(ctx, event); err != nil {
		if markErr := s.events.MarkFailed(ctx, ev, err.Error()); markErr != nil {
			log.Printf("failed to mark webhook event %s failed: %v", event.ID, markErr)
		}
		return err
	}
	return s.events.MarkProcessed(ctx, ev, s.clock.Now())
}

func (s *Service) dispatch(ctx context.Context, event stripe.Event) error {
	switch string(event.Type) {
	case TypePaymentSucceeded:
		obj, err := parseObject(event)
		if err != nil {
			return err
		}
		_, err = s.payments.MarkSucceeded(ctx, obj.ID)
		return err

	case TypePaymentFailed:
		obj, err := parseObject(event)
		if err != nil {
			return err
		}
		reason := obj.FailureMessage
		if obj.LastPaymentError != nil && obj.LastPaymentError.Message != "" {
			reason = obj.LastPaymentError.Message
		}
		return s.payments.MarkFailed(ctx, obj.ID, reason)

	case TypeTransferPaid:
		obj, err := parseObject(event)
		if err != nil {
			return err
		}
		return s.payouts.HandleTransferPaid(ctx, obj.ID)

	case TypeTransferFailed:
		obj, err := parseObject(event)
		if err != nil {
			return err
		}
		return s.payouts.HandleTransferFailed(ctx, obj.ID, obj.FailureMessage)

	case TypeChargeRefunded:
		charge, err := parseCharge(event)
		if err != nil {
			return err
		}
		for _, r := range charge.Refunds.Data {
			if err := s.refunds.HandleRefundSucceeded(ctx, r.ID); err != nil {
				// A refund created outside this engine has no
				// request row to confirm.
				if errors.Is(err, errs.ErrRefundNotFound) {
					continue
				}
				return err
			}
		}
		return nil

	default:
		// Not a settlement event; acknowledge so the sender stops.
		log.Printf("ignoring webhook event type %s", event.Type)
		return nil
	}
}

// eventObject is the slice of the event payload the dispatcher needs.
type eventObject struct {
	ID               string `json:"id"`
	FailureMessage   string `json:"failure_message"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type chargeObject struct {
	ID      string `json:"id"`
	Refunds struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"refunds"`
}

func parseObject(event stripe.Event) (*eventObject, error) {
	var obj eventObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse %s payload: %w", event.Type, err)
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("%s payload has no object id", event.Type)
	}
	return &obj, nil
}

func parseCharge(event stripe.Event) (*chargeObject, error) {
	var charge chargeObject
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return nil, fmt.Errorf("failed to parse charge payload: %w", err)
	}
	return &charge, nil
}
