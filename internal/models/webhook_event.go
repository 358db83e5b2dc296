package models

import "time"

// WebhookEvent processing statuses.
const (
	WebhookStatusReceived  = "received"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
)

// WebhookEvent records one inbound gateway event. The unique index on
// StripeEventID is the sole mechanism preventing duplicate side effects
// under redelivery: the losing writer of a concurrent duplicate hits the
// constraint and exits cleanly.
type WebhookEvent struct {
	ID            uint   `gorm:"primarykey" json:"id"`
	StripeEventID string `gorm:"uniqueIndex;not null" json:"stripe_event_id"`
	Type          string `gorm:"not null;index" json:"type"`
	Payload       JSON   `gorm:"type:jsonb" json:"payload"`
	Status        string `gorm:"not null;default:'received';index" json:"status"`
	ErrorDetail   string `json:"error_detail,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at"`
	CreatedAt     time.Time  `json:"created_at"`
}
