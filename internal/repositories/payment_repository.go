package repositories

import (
	"context"
	"time"

	"paylock/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository defines payment persistence operations. Mutations take
// the transaction handle from the TxRunner; unlocked reads run on the base
// connection.
type PaymentRepository interface {
	Create(tx *gorm.DB, p *models.Payment) error
	Update(tx *gorm.DB, p *models.Payment) error
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	// FindReleasable returns the candidate set for the release sweep:
	// held payments whose hold window has elapsed. Runs unlocked; each
	// candidate is re-checked under its row lock before release.
	FindReleasable(ctx context.Context, now time.Time, limit int) ([]models.Payment, error)
}
