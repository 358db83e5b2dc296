package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paylock/internal/models"

	"gorm.io/gorm"
)

// ErrEventExists signals that a WebhookEvent row with the same gateway
// event id already exists. Callers treat it as "already being handled".
var ErrEventExists = errors.New("webhook event already recorded")

// WebhookEventRepository defines webhook event persistence. The unique
// index on stripe_event_id is the race-safety mechanism: Insert surfaces a
// duplicate as ErrEventExists instead of a raw constraint error.
type WebhookEventRepository interface {
	Insert(ctx context.Context, ev *models.WebhookEvent) error
	GetByStripeID(ctx context.Context, eventID string) (*models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, ev *models.WebhookEvent, at time.Time) error
	MarkFailed(ctx context.Context, ev *models.WebhookEvent, detail string) error
	MarkReceived(ctx context.Context, ev *models.WebhookEvent) error
}

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Insert(ctx context.Context, ev *models.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		if IsDuplicateKey(err) {
			return ErrEventExists
		}
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return nil
}

func (r *webhookEventRepository) GetByStripeID(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	err := r.db.WithContext(ctx).Where("stripe_event_id = ?", eventID).First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get webhook event %s: %w", eventID, err)
	}
	return &ev, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, ev *models.WebhookEvent, at time.Time) error {
	ev.Status = models.WebhookStatusProcessed
	ev.ErrorDetail = ""
	ev.ProcessedAt = &at
	return r.save(ctx, ev)
}

func (r *webhookEventRepository) MarkFailed(ctx context.Context, ev *models.WebhookEvent, detail string) error {
	ev.Status = models.WebhookStatusFailed
	ev.ErrorDetail = detail
	return r.save(ctx, ev)
}

func (r *webhookEventRepository) MarkReceived(ctx context.Context, ev *models.WebhookEvent) error {
	ev.Status = models.WebhookStatusReceived
	ev.ErrorDetail = ""
	return r.save(ctx, ev)
}

func (r *webhookEventRepository) save(ctx context.Context, ev *models.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Save(ev).Error; err != nil {
		return fmt.Errorf("failed to update webhook event %d: %w", ev.ID, err)
	}
	return nil
}
