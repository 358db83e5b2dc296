package payout

import (
	"context"
	"fmt"
	"log"
	"time"

	"paylock/internal/clock"
	errs "paylock/internal/errors"
	"paylock/internal/events"
	"paylock/internal/gateway"
	"paylock/internal/models"
	"paylock/internal/repositories"

	"gorm.io/gorm"
)

// RowLocker is the lock-helper subset the payout service uses. The parent
// payment is always locked before its payout row.
type RowLocker interface {
	LockPayment(tx *gorm.DB, id uint) (*models.Payment, error)
	LockPayout(tx *gorm.DB, id uint) (*models.SellerPayout, error)
}

// Service submits payouts to the transfer gateway and applies
// transfer-completion events. Submission always happens after the creating
// transaction committed; the payout's own id is the idempotency key so a
// resubmission can never duplicate a transfer.
type Service interface {
	Submit(ctx context.Context, payoutID uint) error
	SubmitForPayment(ctx context.Context, paymentID uint) error
	RecoverStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
	HandleTransferPaid(ctx context.Context, transferID string) error
	HandleTransferFailed(ctx context.Context, transferID, reason string) error
	ListByPayment(ctx context.Context, paymentID uint) ([]models.SellerPayout, error)
}

type Config struct {
	Runner   repositories.TxRunner
	Payments repositories.PaymentRepository
	Payouts  repositories.PayoutRepository
	Locks    RowLocker
	Gateway  gateway.TransferGateway
	Clock    clock.Clock
	Bus      *events.Bus
}

type service struct {
	runner   repositories.TxRunner
	payments repositories.PaymentRepository
	payouts  repositories.PayoutRepository
	locks    RowLocker
	gateway  gateway.TransferGateway
	clock    clock.Clock
	bus      *events.Bus
}

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
	if cfg.Gateway == nil {
		panic("transfer gateway is required")
	}
	if cfg.Locks == nil {
		cfg.Locks = repositories.Locks{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &service{
		runner:   cfg.Runner,
		payments: cfg.Payments,
		payouts:  cfg.Payouts,
		locks:    cfg.Locks,
		gateway:  cfg.Gateway,
		clock:    cfg.Clock,
		bus:      cfg.Bus,
	}
}

// Submit sends one payout to the transfer gateway. Pending rows from a
// fresh release and failed rows being retried are accepted; anything
// already processing or paid is a no-op. A gateway failure marks only this
// payout failed and never touches the payment's released status or sibling
// payouts.
func (s *service) Submit(ctx context.Context, payoutID uint) error {
	po, err := s.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return err
	}
	if !po.Submittable() {
		if po.Status == models.PayoutStatusProcessing || po.Status == models.PayoutStatusPaid {
			return nil
		}
		return ErrNotSubmittable
	}

	key := IdempotencyKey(po.ID)
	result, gwErr := s.gateway.SendTransfer(ctx, po.StripeAccountID, po.NetAmount, po.Currency, key)

	txErr := s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		if _, err := s.locks.LockPayment(tx, po.PaymentID); err != nil {
			return err
		}
		locked, err := s.locks.LockPayout(tx, po.ID)
		if err != nil {
			return err
		}
		if locked.Status == models.PayoutStatusPaid {
			return nil
		}

		if gwErr != nil {
			locked.Status = models.PayoutStatusFailed
			locked.FailureReason = gwErr.Error()
			return s.payouts.Update(tx, locked)
		}

		locked.Status = models.PayoutStatusProcessing
		locked.StripeTransferID = result.TransferID
		locked.FailureReason = ""
		if err := s.payouts.Update(tx, locked); err != nil {
			return err
		}
		return s.markPayoutInitiated(tx, po.PaymentID)
	})
	if txErr != nil {
		return txErr
	}
	if gwErr != nil {
		s.publish(events.PayoutEvent{
			Name: events.PayoutFailedEvent, PayoutID: po.ID, PaymentID: po.PaymentID,
			SellerID: po.SellerID, NetAmount: po.NetAmount, At: s.clock.Now(),
		})
		return fmt.Errorf("%w: %v", &errs.DomainError{
			Code:    errs.CodeGatewayFailed,
			Message: fmt.Sprintf("transfer for payout %d failed", po.ID),
		}, gwErr)
	}

	s.publish(events.PayoutEvent{
		Name: events.PayoutSubmittedEvent, PayoutID: po.ID, PaymentID: po.PaymentID,
		SellerID: po.SellerID, NetAmount: po.NetAmount, At: s.clock.Now(),
	})
	return nil
}

// SubmitForPayment submits every submittable payout of one payment. One
// failure does not stop the siblings.
func (s *service) SubmitForPayment(ctx context.Context, paymentID uint) error {
	payouts, err := s.payouts.ListByPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	var firstErr error
	for _, po := range payouts {
		if !po.Submittable() {
			continue
		}
		if err := s.Submit(ctx, po.ID); err != nil {
			log.Printf("payout %d submission failed: %v", po.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RecoverStale resubmits pending payouts whose release committed but whose
// submission never happened, e.g. a crash between commit and the gateway
// call.
func (s *service) RecoverStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.clock.Now().Add(-olderThan)
	stale, err := s.payouts.FindStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, po := range stale {
		if err := s.Submit(ctx, po.ID); err != nil {
			log.Printf("stale payout %d recovery failed: %v", po.ID, err)
			continue
		}
		recovered++
	}
	return recovered, nil
}

// HandleTransferPaid applies a transfer-completion event. Once the last
// payout of a payment is paid the payment settles. An unknown transfer id
// surfaces as not-found so the webhook layer can defer the event until the
// payout row exists.
func (s *service) HandleTransferPaid(ctx context.Context, transferID string) error {
	po, err := s.payouts.GetByTransferID(ctx, transferID)
	if err != nil {
		return err
	}

	var settled bool
	err = s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		p, err := s.locks.LockPayment(tx, po.PaymentID)
		if err != nil {
			return err
		}
		locked, err := s.locks.LockPayout(tx, po.ID)
		if err != nil {
			return err
		}
		if locked.Status == models.PayoutStatusPaid {
			return nil
		}

		now := s.clock.Now()
		locked.Status = models.PayoutStatusPaid
		locked.PaidAt = &now
		locked.FailureReason = ""
		if err := s.payouts.Update(tx, locked); err != nil {
			return err
		}

		unpaid, err := s.payouts.CountUnpaid(tx, p.ID)
		if err != nil {
			return err
		}
		if unpaid == 0 && (p.Status == models.PaymentStatusReleased || p.Status == models.PaymentStatusPayoutInitiated) {
			p.Status = models.PaymentStatusSettled
			settled = true
			return s.payments.Update(tx, p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(events.PayoutEvent{
		Name: events.PayoutPaidEvent, PayoutID: po.ID, PaymentID: po.PaymentID,
		SellerID: po.SellerID, NetAmount: po.NetAmount, At: s.clock.Now(),
	})
	if settled {
		s.publish(events.PaymentEvent{
			Name: events.PaymentSettledEvent, PaymentID: po.PaymentID, At: s.clock.Now(),
		})
	}
	return nil
}

func (s *service) HandleTransferFailed(ctx context.Context, transferID, reason string) error {
	po, err := s.payouts.GetByTransferID(ctx, transferID)
	if err != nil {
		return err
	}

	err = s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		if _, err := s.locks.LockPayment(tx, po.PaymentID); err != nil {
			return err
		}
		locked, err := s.locks.LockPayout(tx, po.ID)
		if err != nil {
			return err
		}
		if locked.Status == models.PayoutStatusPaid {
			return errs.StateConflict("payout %d already paid, transfer failure ignored", locked.ID)
		}
		locked.Status = models.PayoutStatusFailed
		locked.FailureReason = reason
		return s.payouts.Update(tx, locked)
	})
	if err != nil {
		return err
	}

	s.publish(events.PayoutEvent{
		Name: events.PayoutFailedEvent, PayoutID: po.ID, PaymentID: po.PaymentID,
		SellerID: po.SellerID, NetAmount: po.NetAmount, At: s.clock.Now(),
	})
	return nil
}

func (s *service) ListByPayment(ctx context.Context, paymentID uint) ([]models.SellerPayout, error) {
	return s.payouts.ListByPayment(ctx, paymentID)
}

// markPayoutInitiated advances the parent payment once its first transfer
// is in flight. Caller holds the payment lock.
func (s *service) markPayoutInitiated(tx *gorm.DB, paymentID uint) error {
	p, err := s.locks.LockPayment(tx, paymentID)
	if err != nil {
		return err
	}
	if p.Status != models.PaymentStatusReleased {
		return nil
	}
	p.Status = models.PaymentStatusPayoutInitiated
	return s.payments.Update(tx, p)
}

// IdempotencyKey derives the gateway idempotency key from the payout id.
func IdempotencyKey(payoutID uint) string {
	return fmt.Sprintf("payout-%d", payoutID)
}

func (s *service) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
