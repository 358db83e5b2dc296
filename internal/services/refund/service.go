// Package refund implements the buyer refund workflow: request, admin
// approve/reject, gateway submission and confirmation. Approval is bounded
// by the payment's remaining refundable balance; refunds that reach funds
// already paid out only flag the payment for manual reconciliation, never
// debit a seller.
package refund

import (
	"context"
	"fmt"

	"paylock/internal/clock"
	errs "paylock/internal/errors"
	"paylock/internal/events"
	"paylock/internal/gateway"
	"paylock/internal/models"
	"paylock/internal/repositories"

	"gorm.io/gorm"
)

// RowLocker is the lock-helper subset the refund workflow uses, in
// canonical order: payment, then payout rows, then the refund row.
type RowLocker interface {
	LockPayment(tx *gorm.DB, id uint) (*models.Payment, error)
	LockPayoutsForPayment(tx *gorm.DB, paymentID uint) ([]models.SellerPayout, error)
	LockRefund(tx *gorm.DB, id uint) (*models.RefundRequest, error)
}

// RequestParams describes a buyer refund ask.
type RequestParams struct {
	PaymentID   uint   `json:"payment_id" validate:"required"`
	RequesterID uint   `json:"requester_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Reason      string `json:"reason" validate:"required"`
}

// Service owns refund requests end to end.
type Service interface {
	Request(ctx context.Context, params RequestParams) (*models.RefundRequest, error)
	Approve(ctx context.Context, refundID, reviewerID uint) (*models.RefundRequest, error)
	Reject(ctx context.Context, refundID, reviewerID uint) (*models.RefundRequest, error)
	HandleRefundSucceeded(ctx context.Context, stripeRefundID string) error
	Get(ctx context.Context, id uint) (*models.RefundRequest, error)
}

type Config struct {
	Runner   repositories.TxRunner
	Payments repositories.PaymentRepository
	Refunds  repositories.RefundRepository
	Locks    RowLocker
	Gateway  gateway.RefundGateway
	Clock    clock.Clock
	Bus      *events.Bus
}

type service struct {
	runner   repositories.TxRunner
	payments repositories.PaymentRepository
	refunds  repositories.RefundRepository
	locks    RowLocker
	gateway  gateway.RefundGateway
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
	if cfg.Refunds == nil {
		panic("refund repository is required")
	}
	if cfg.Gateway == nil {
		panic("refund gateway is required")
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
		refunds:  cfg.Refunds,
		locks:    cfg.Locks,
		gateway:  cfg.Gateway,
		clock:    cfg.Clock,
		bus:      cfg.Bus,
	}
}

func (s *service) Request(ctx context.Context, params RequestParams) (*models.RefundRequest, error) {
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	p, err := s.payments.GetByID(ctx, params.PaymentID)
	if err != nil {
		return nil, err
	}
	if !refundablePaymentState(p.Status) {
		return nil, ErrPaymentNotLive
	}
	// Soft bound at request time; the hard bound is re-checked under lock
	// at approval.
	if params.Amount > p.RefundableAmount() {
		return nil, errs.ErrRefundExceedsBalance
	}

	req := &models.RefundRequest{
		PaymentID:   params.PaymentID,
		RequesterID: params.RequesterID,
		Amount:      params.Amount,
		Reason:      params.Reason,
		Status:      models.RefundStatusPending,
	}
	if err := s.refunds.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Approve validates the refund bound under the payment lock, marks the
// request approved, then submits to the gateway after commit. A gateway
// failure leaves the request approved with the failure recorded, so it can
// be resubmitted with the same idempotency key.
func (s *service) Approve(ctx context.Context, refundID, reviewerID uint) (*models.RefundRequest, error) {
	var req *models.RefundRequest
	var intentID string
	// Unlocked read to learn the parent payment, then locks in canonical
	// order: payment first, refund row last.
	pending, err := s.refunds.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	err = s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		p, err := s.locks.LockPayment(tx, pending.PaymentID)
		if err != nil {
			return err
		}
		r, err := s.locks.LockRefund(tx, refundID)
		if err != nil {
			return err
		}
		req = r
		intentID = p.StripePaymentIntentID

		if r.Status == models.RefundStatusApproved || r.Status == models.RefundStatusProcessing {
			return nil
		}
		if !r.Open() {
			return errs.StateConflict("refund %d is %s, cannot approve", r.ID, r.Status)
		}
		if !refundablePaymentState(p.Status) {
			return errs.StateConflict("payment %d is %s, cannot refund", p.ID, p.Status)
		}

		outstanding, err := s.refunds.SumOutstanding(tx, p.ID)
		if err != nil {
			return err
		}
		if r.Amount > p.RefundableAmount()-outstanding {
			return errs.ErrRefundExceedsBalance
		}

		r.Status = models.RefundStatusApproved
		r.ReviewedBy = &reviewerID
		return s.refunds.Update(tx, r)
	})
	if err != nil {
		return nil, err
	}

	result, gwErr := s.gateway.Refund(ctx, intentID, req.Amount, IdempotencyKey(req.ID))
	txErr := s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		if _, err := s.locks.LockPayment(tx, req.PaymentID); err != nil {
			return err
		}
		r, err := s.locks.LockRefund(tx, refundID)
		if err != nil {
			return err
		}
		req = r
		if r.Status == models.RefundStatusCompleted {
			return nil
		}
		if gwErr != nil {
			r.FailureReason = gwErr.Error()
			return s.refunds.Update(tx, r)
		}
		r.Status = models.RefundStatusProcessing
		r.StripeRefundID = result.RefundID
		r.FailureReason = ""
		return s.refunds.Update(tx, r)
	})
	if txErr != nil {
		return nil, txErr
	}
	if gwErr != nil {
		return req, fmt.Errorf("%w: %v", &errs.DomainError{
			Code:    errs.CodeGatewayFailed,
			Message: fmt.Sprintf("refund %d gateway submission failed", refundID),
		}, gwErr)
	}
	return req, nil
}

func (s *service) Reject(ctx context.Context, refundID, reviewerID uint) (*models.RefundRequest, error) {
	var req *models.RefundRequest
	err := s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		r, err := s.locks.LockRefund(tx, refundID)
		if err != nil {
			return err
		}
		req = r
		if r.Status == models.RefundStatusRejected {
			return nil
		}
		if !r.Open() {
			return errs.StateConflict("refund %d is %s, cannot reject", r.ID, r.Status)
		}
		r.Status = models.RefundStatusRejected
		r.ReviewedBy = &reviewerID
		return s.refunds.Update(tx, r)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// HandleRefundSucceeded applies the gateway's refund confirmation: the
// request completes, the payment's refunded ledger grows, and the payment
// moves to refunded or partially_refunded without reversing a release. When
// the refunded total exceeds the funds still withheld in unpaid payouts the
// payment is flagged for manual reconciliation.
func (s *service) HandleRefundSucceeded(ctx context.Context, stripeRefundID string) error {
	req, err := s.refunds.GetByStripeRefundID(ctx, stripeRefundID)
	if err != nil {
		return err
	}

	var completed bool
	err = s.runner.Serialized(ctx, func(tx *gorm.DB) error {
		p, err := s.locks.LockPayment(tx, req.PaymentID)
		if err != nil {
			return err
		}
		payouts, err := s.locks.LockPayoutsForPayment(tx, p.ID)
		if err != nil {
			return err
		}
		r, err := s.locks.LockRefund(tx, req.ID)
		if err != nil {
			return err
		}
		if r.Status == models.RefundStatusCompleted {
			return nil
		}

		r.Status = models.RefundStatusCompleted
		r.FailureReason = ""
		if err := s.refunds.Update(tx, r); err != nil {
			return err
		}

		p.AmountRefunded += r.Amount
		if p.AmountRefunded >= p.Amount {
			p.Status = models.PaymentStatusRefunded
		} else {
			p.Status = models.PaymentStatusPartiallyRefunded
		}

		var withheld int64
		for _, po := range payouts {
			if po.Status == models.PayoutStatusPending || po.Status == models.PayoutStatusProcessing {
				withheld += po.NetAmount + po.FeeAmount
			}
		}
		if len(payouts) > 0 && p.AmountRefunded > withheld {
			// Funds already left for sellers; clawback is a manual
			// operator action.
			p.NeedsReconciliation = true
		}
		completed = true
		return s.payments.Update(tx, p)
	})
	if err != nil {
		return err
	}

	if completed && s.bus != nil {
		s.bus.Publish(events.RefundEvent{
			Name:      events.RefundCompletedEvent,
			RefundID:  req.ID,
			PaymentID: req.PaymentID,
			Amount:    req.Amount,
			At:        s.clock.Now(),
		})
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uint) (*models.RefundRequest, error) {
	return s.refunds.GetByID(ctx, id)
}

// IdempotencyKey derives the gateway idempotency key from the refund id.
func IdempotencyKey(refundID uint) string {
	return fmt.Sprintf("refund-%d", refundID)
}

// refundablePaymentState reports whether the payment status admits refunds:
// succeeded, held or released branches, including prior partial refunds.
func refundablePaymentState(status string) bool {
	switch status {
	case models.PaymentStatusSucceeded, models.PaymentStatusHeld,
		models.PaymentStatusReleased, models.PaymentStatusPayoutInitiated,
		models.PaymentStatusSettled, models.PaymentStatusPartiallyRefunded:
		return true
	}
	return false
}
