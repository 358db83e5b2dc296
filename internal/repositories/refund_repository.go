package repositories

import (
	"context"
	"errors"
	"fmt"

	errs "paylock/internal/errors"
	"paylock/internal/models"

	"gorm.io/gorm"
)

// RefundRepository defines refund request persistence operations.
type RefundRepository interface {
	Create(ctx context.Context, r *models.RefundRequest) error
	Update(tx *gorm.DB, r *models.RefundRequest) error
	GetByID(ctx context.Context, id uint) (*models.RefundRequest, error)
	GetByStripeRefundID(ctx context.Context, refundID string) (*models.RefundRequest, error)
	ListByPayment(ctx context.Context, paymentID uint) ([]models.RefundRequest, error)
	// SumOutstanding totals refunds already approved or in flight for the
	// payment, under the current transaction. The approval bound counts
	// these so overlapping approvals cannot overdraw the payment.
	SumOutstanding(tx *gorm.DB, paymentID uint) (int64, error)
}

type refundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(ctx context.Context, req *models.RefundRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create refund request: %w", err)
	}
	return nil
}

func (r *refundRepository) Update(tx *gorm.DB, req *models.RefundRequest) error {
	if err := tx.Save(req).Error; err != nil {
		return fmt.Errorf("failed to update refund request %d: %w", req.ID, err)
	}
	return nil
}

func (r *refundRepository) GetByID(ctx context.Context, id uint) (*models.RefundRequest, error) {
	var req models.RefundRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to get refund request %d: %w", id, err)
	}
	return &req, nil
}

func (r *refundRepository) GetByStripeRefundID(ctx context.Context, refundID string) (*models.RefundRequest, error) {
	var req models.RefundRequest
	err := r.db.WithContext(ctx).Where("stripe_refund_id = ?", refundID).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to get refund request for %s: %w", refundID, err)
	}
	return &req, nil
}

func (r *refundRepository) SumOutstanding(tx *gorm.DB, paymentID uint) (int64, error) {
	var total int64
	err := tx.Model(&models.RefundRequest{}).
		Where("payment_id = ?", paymentID).
		Where("status IN ?", []string{models.RefundStatusApproved, models.RefundStatusProcessing}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum outstanding refunds for payment %d: %w", paymentID, err)
	}
	return total, nil
}

func (r *refundRepository) ListByPayment(ctx context.Context, paymentID uint) ([]models.RefundRequest, error) {
	var reqs []models.RefundRequest
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("id ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list refund requests for payment %d: %w", paymentID, err)
	}
	return reqs, nil
}
