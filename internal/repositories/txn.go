package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	errs "paylock/internal/errors"
	"paylock/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres error codes the runner retries on.
const (
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"
)

const (
	maxTxAttempts = 3
	baseRetryWait = 10 * time.Millisecond
)

// TxRunner is the concurrency controller every writer goes through. It runs
// the given function in a READ COMMITTED transaction; correctness comes from
// row locks acquired in canonical order (payments, then seller_payouts, then
// refund_requests, ascending primary key), not from isolation level.
type TxRunner interface {
	Serialized(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type runner struct {
	db    *gorm.DB
	sleep func(time.Duration)
}

// NewRunner creates the transaction runner backed by the given database.
func NewRunner(db *gorm.DB) TxRunner {
	if db == nil {
		panic("db is required")
	}
	return &runner{db: db, sleep: time.Sleep}
}

func (r *runner) Serialized(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.retry(func() error {
		return r.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
		})
	})
}

// retry re-runs the whole transaction on deadlock or serialization failure,
// waiting 10ms * 2^attempt between attempts. The original failure is kept in
// the wrapped error after exhaustion.
func (r *runner) retry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsRetriableTxError(err) {
			return err
		}
		if attempt == maxTxAttempts {
			break
		}
		wait := baseRetryWait << (attempt - 1)
		log.Printf("transaction retry %d/%d after %s: %v", attempt, maxTxAttempts-1, wait, err)
		r.sleep(wait)
	}
	return fmt.Errorf("%w: %v", errs.ErrDeadlockExhausted, err)
}

// IsRetriableTxError reports whether the error is a deadlock or
// serialization failure worth retrying.
func IsRetriableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgDeadlockDetected || pgErr.Code == pgSerializationFailure
	}
	return false
}

// IsDuplicateKey reports whether the error is a unique-constraint violation.
// Losing writers of concurrent duplicate inserts see this and treat the row
// as already handled.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

// Locks bundles the canonical-order lock helpers behind a value services
// can depend on and tests can replace.
type Locks struct{}

func (Locks) LockPayment(tx *gorm.DB, id uint) (*models.Payment, error) {
	return LockPayment(tx, id)
}

func (Locks) LockPaymentByIntent(tx *gorm.DB, intentID string) (*models.Payment, error) {
	return LockPaymentByIntent(tx, intentID)
}

func (Locks) LockPayoutsForPayment(tx *gorm.DB, paymentID uint) ([]models.SellerPayout, error) {
	return LockPayoutsForPayment(tx, paymentID)
}

func (Locks) LockPayout(tx *gorm.DB, id uint) (*models.SellerPayout, error) {
	return LockPayout(tx, id)
}

func (Locks) LockRefund(tx *gorm.DB, id uint) (*models.RefundRequest, error) {
	return LockRefund(tx, id)
}

// LockPayment acquires the exclusive row lock on a payment. Payments come
// first in the canonical lock order, so every multi-entity operation starts
// here.
func LockPayment(tx *gorm.DB, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := tx.Clauses(forUpdate).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to lock payment %d: %w", id, err)
	}
	return &p, nil
}

// LockPaymentByIntent locks a payment via its gateway intent id.
func LockPaymentByIntent(tx *gorm.DB, intentID string) (*models.Payment, error) {
	var p models.Payment
	err := tx.Clauses(forUpdate).Where("stripe_payment_intent_id = ?", intentID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to lock payment for intent %s: %w", intentID, err)
	}
	return &p, nil
}

// LockPayoutsForPayment locks all payout rows of one payment, ascending by
// primary key. Call only while holding the parent payment lock.
func LockPayoutsForPayment(tx *gorm.DB, paymentID uint) ([]models.SellerPayout, error) {
	var payouts []models.SellerPayout
	err := tx.Clauses(forUpdate).
		Where("payment_id = ?", paymentID).
		Order("id ASC").
		Find(&payouts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock payouts for payment %d: %w", paymentID, err)
	}
	return payouts, nil
}

// LockPayout locks a single payout row. Call only while holding the parent
// payment lock.
func LockPayout(tx *gorm.DB, id uint) (*models.SellerPayout, error) {
	var po models.SellerPayout
	if err := tx.Clauses(forUpdate).First(&po, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("failed to lock payout %d: %w", id, err)
	}
	return &po, nil
}

// LockRefund locks one refund request row. Refunds come last in the
// canonical order.
func LockRefund(tx *gorm.DB, id uint) (*models.RefundRequest, error) {
	var r models.RefundRequest
	if err := tx.Clauses(forUpdate).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to lock refund %d: %w", id, err)
	}
	return &r, nil
}
