package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "paylock/internal/errors"
	"paylock/internal/models"

	"gorm.io/gorm"
)

// PayoutRepository defines seller payout persistence operations.
type PayoutRepository interface {
	Create(tx *gorm.DB, po *models.SellerPayout) error
	Update(tx *gorm.DB, po *models.SellerPayout) error
	GetByID(ctx context.Context, id uint) (*models.SellerPayout, error)
	GetByTransferID(ctx context.Context, transferID string) (*models.SellerPayout, error)
	ListByPayment(ctx context.Context, paymentID uint) ([]models.SellerPayout, error)
	// FindStalePending returns pending payouts created before the cutoff.
	// These are rows committed by a release whose gateway submission never
	// happened (crash between commit and submit) and need resubmission.
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.SellerPayout, error)
	// CountUnpaid counts the payment's payouts not yet paid, under the
	// current transaction so the settled transition sees a locked view.
	CountUnpaid(tx *gorm.DB, paymentID uint) (int64, error)
}

type payoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepository{db: db}
}

func (r *payoutRepository) Create(tx *gorm.DB, po *models.SellerPayout) error {
	if err := tx.Create(po).Error; err != nil {
		return fmt.Errorf("failed to create payout: %w", err)
	}
	return nil
}

func (r *payoutRepository) Update(tx *gorm.DB, po *models.SellerPayout) error {
	if err := tx.Save(po).Error; err != nil {
		return fmt.Errorf("failed to update payout %d: %w", po.ID, err)
	}
	return nil
}

func (r *payoutRepository) GetByID(ctx context.Context, id uint) (*models.SellerPayout, error) {
	var po models.SellerPayout
	if err := r.db.WithContext(ctx).First(&po, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("failed to get payout %d: %w", id, err)
	}
	return &po, nil
}

func (r *payoutRepository) GetByTransferID(ctx context.Context, transferID string) (*models.SellerPayout, error) {
	var po models.SellerPayout
	err := r.db.WithContext(ctx).Where("stripe_transfer_id = ?", transferID).First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("failed to get payout for transfer %s: %w", transferID, err)
	}
	return &po, nil
}

func (r *payoutRepository) ListByPayment(ctx context.Context, paymentID uint) ([]models.SellerPayout, error) {
	var payouts []models.SellerPayout
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("id ASC").
		Find(&payouts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts for payment %d: %w", paymentID, err)
	}
	return payouts, nil
}

func (r *payoutRepository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.SellerPayout, error) {
	var payouts []models.SellerPayout
	err := r.db.WithContext(ctx).
		Where("status = ?", models.PayoutStatusPending).
		Where("created_at < ?", cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale pending payouts: %w", err)
	}
	return payouts, nil
}

func (r *payoutRepository) CountUnpaid(tx *gorm.DB, paymentID uint) (int64, error) {
	var count int64
	err := tx.Model(&models.SellerPayout{}).
		Where("payment_id = ?", paymentID).
		Where("status <> ?", models.PayoutStatusPaid).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unpaid payouts for payment %d: %w", paymentID, err)
	}
	return count, nil
}
