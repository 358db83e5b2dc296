package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"paylock/internal/clock"
	errs "paylock/internal/errors"
	"paylock/internal/events"
	"paylock/internal/models"
	"paylock/internal/repositories"
	"paylock/internal/services/payout"

	"gorm.io/gorm"
)

// RowLocker is the subset of canonical-order lock helpers this service
// uses. Payments are first in the lock order, so both locks here open a
// logical operation.
type RowLocker interface {
	LockPayment(tx *gorm.DB, id uint) (*models.Payment, error)
	LockPaymentByIntent(tx *gorm.DB, intentID string) (*models.Payment, error)
}

type Config struct {
	Runner     repositories.TxRunner
	Payments   repositories.PaymentRepository
	Payouts    repositories.PayoutRepository
	OrderItems repositories.OrderItemRepository
	Locks      RowLocker
	Cache      Cache
	Clock      clock.Clock
	Bus        *events.Bus
	HoldPeriod time.Duration
	FeeBps     int64
}

type service struct {
	runner     repositories.TxRunner
	payments   repositories.PaymentRepository
	payouts    repositories.PayoutRepository
	orderItems repositories.OrderItemRepository
	locks      RowLocker
	cache      Cache
	clock      clock.Clock
	bus        *events.Bus
	holdPeriod time.Duration
	feeBps     int64
}

// NewService creates the payment state machine service.
func NewService(cfg Config) Service {
	if cfg.Runner == nil {
		panic("runner is required")
	}
	if cfg.Payments == nil {
		panic("payment repository is required")
	}
	if cfg.Payouts == nil {
		panic("payout repository is required")
	}
	if cfg.OrderItems == nil {
		panic("order item repository is required")
	}
	if cfg.Locks == nil {
		cfg.Locks = repositories.Locks{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.HoldPeriod <= 0 {
		cfg.HoldPeriod = 720 * time.Hour
	}

	return &service{
		runner:     cfg.Runner,
		payments:   cfg.Payments,
		payouts:    cfg.Payouts,
		orderItems: cfg.OrderItems,
		locks:      cfg.Locks,
		cache:      cfg.Cache,
		clock:      cfg.Clock,
		bus:        cfg.Bus,
		holdPeriod: cfg.HoldPeriod,
		feeBps:     cfg.FeeBps,
	}
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Payment, error) {
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if len(params.Currency) != 3 {
		return nil, ErrInvalidCurrency
	}
	if params.PaymentIntentID == "" {
		return nil, ErrMissingIntentID
	}

	p := &models.Payment{
		OrderID:               params.OrderID,
		BuyerID:               params.BuyerID,
		Amount:                params.Amount,
		Currency:              params.Currency,
		Status:                models.PaymentStatusPending,
		StripePaymentIntentID: params.PaymentIntentID,
	}

	err := s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		return s.payments.Create(tx, p)
	})
	if err != nil {
		if repositories.IsDuplicateKey(err) {
			// Replayed capture attempt for the same intent.
			return s.payments.GetByIntentID(ctx, params.PaymentIntentID)
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return p, nil
}

// MarkSucceeded applies the gateway "succeeded" event: status moves to
// succeeded and the hold window is stamped as created_at + holdPeriod,
// exactly once, atomically with the status write.
func (s *service) MarkSucceeded(ctx context.Context, intentID string) (*models.Payment, error) {
	var result *models.Payment
	err := s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		p, err := s.locks.LockPaymentByIntent(tx, intentID)
		if err != nil {
			return err
		}
		result = p

		switch p.Status {
		case models.PaymentStatusCreated, models.PaymentStatusPending:
			// guarded transition below
		case models.PaymentStatusFailed, models.PaymentStatusCancelled:
			return errs.StateConflict("payment %d is %s, cannot succeed", p.ID, p.Status)
		default:
			// Already succeeded or further along; replayed event.
			return nil
		}

		p.Status = models.PaymentStatusSucceeded
		p.IsHeld = true
		if p.HoldUntil == nil {
			holdUntil := p.CreatedAt.UTC().Add(s.holdPeriod)
			p.HoldUntil = &holdUntil
		}
		return s.payments.Update(tx, p)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, result.ID)
	s.publish(events.PaymentEvent{
		Name:      events.PaymentSucceededEvent,
		PaymentID: result.ID,
		Amount:    result.Amount,
		Currency:  result.Currency,
		At:        s.clock.Now(),
	})
	return result, nil
}

func (s *service) MarkFailed(ctx context.Context, intentID, reason string) error {
	var paymentID uint
	err := s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		p, err := s.locks.LockPaymentByIntent(tx, intentID)
		if err != nil {
			return err
		}
		paymentID = p.ID

		switch p.Status {
		case models.PaymentStatusCreated, models.PaymentStatusPending:
			// guarded transition below
		case models.PaymentStatusFailed:
			return nil
		default:
			return errs.StateConflict("payment %d is %s, cannot fail", p.ID, p.Status)
		}

		p.Status = models.PaymentStatusFailed
		p.FailureReason = reason
		return s.payments.Update(tx, p)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, paymentID)
	return nil
}

// Release performs the held → released transition and creates the payout
// fan-out in the same transaction. The candidate predicate is re-checked
// under the row lock, so concurrent sweeps, admin calls and webhook
// handlers produce at most one release; the losers get AlreadyReleased.
// Gateway submission happens outside, after this commits.
func (s *service) Release(ctx context.Context, paymentID uint, opts ReleaseOptions) (*ReleaseResult, error) {
	result := &ReleaseResult{}
	err := s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		p, err := s.locks.LockPayment(tx, paymentID)
		if err != nil {
			return err
		}
		result.Payment = p

		if p.AtOrPastRelease() {
			result.AlreadyReleased = true
			return nil
		}
		if !p.Releasable() {
			return errs.StateConflict("payment %d is %s and not held, cannot release", p.ID, p.Status)
		}
		now := s.clock.Now()
		if !opts.Manual && !p.HoldMatured(now) {
			return errs.ErrHoldNotMatured
		}

		items, err := s.orderItems.ItemsForOrder(tx, p.OrderID)
		if err != nil {
			return err
		}
		fanOut, err := payout.BuildPayouts(p, items, s.feeBps)
		if err != nil {
			return err
		}

		p.Status = models.PaymentStatusReleased
		p.IsHeld = false
		p.HoldReleasedAt = &now
		p.ApplicationFee = fanOut.TotalFee
		if err := s.payments.Update(tx, p); err != nil {
			return err
		}

		for _, po := range fanOut.Payouts {
			if err := s.payouts.Create(tx, po); err != nil {
				if repositories.IsDuplicateKey(err) {
					// Row already created by an earlier replayed
					// release; the unique index keeps it single.
					continue
				}
				return err
			}
			result.Payouts = append(result.Payouts, *po)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyReleased {
		s.invalidate(ctx, paymentID)
		s.publish(events.PaymentEvent{
			Name:      events.PaymentReleasedEvent,
			PaymentID: paymentID,
			Amount:    result.Payment.Amount,
			Currency:  result.Payment.Currency,
			At:        s.clock.Now(),
		})
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uint) (*models.Payment, error) {
	if s.cache != nil {
		if p, err := s.cache.GetPayment(ctx, id); err == nil {
			return p, nil
		}
	}
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetPayment(ctx, p); err != nil {
			log.Printf("failed to cache payment %d: %v", id, err)
		}
	}
	return p, nil
}

func (s *service) invalidate(ctx context.Context, id uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePayment(ctx, id); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("failed to invalidate payment %d cache: %v", id, err)
	}
}

func (s *service) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
