package models

import "time"

// ProcessedEvent is the idempotency ledger for provider webhook events.
// The unique index on EventID is what guarantees at-most-once side effects:
// a redelivered event either fails the existence check or conflicts on
// insert, and both cases are treated as an acknowledged no-op.
type ProcessedEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"event_id"`
	EventType   string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
	Payload     string    `gorm:"type:jsonb" json:"payload"` // raw event for audit and replay
}
