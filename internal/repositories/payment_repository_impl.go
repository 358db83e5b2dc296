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

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(tx *gorm.DB, p *models.Payment) error {
	if err := tx.Create(p).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Update(tx *gorm.DB, p *models.Payment) error {
	if err := tx.Save(p).Error; err != nil {
		return fmt.Errorf("failed to update payment %d: %w", p.ID, err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment %d: %w", id, err)
	}
	return &p, nil
}

func (r *paymentRepository) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", intentID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment for intent %s: %w", intentID, err)
	}
	return &p, nil
}

func (r *paymentRepository) FindReleasable(ctx context.Context, now time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.PaymentStatusSucceeded, models.PaymentStatusHeld}).
		Where("is_held = ?", true).
		Where("hold_until <= ?", now).
		Order("hold_until ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find releasable payments: %w", err)
	}
	return payments, nil
}
