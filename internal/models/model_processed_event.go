package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProcessedStripeEvent marks one provider event as fully applied. Existence
// of a row means the event's side effects must not run again; the row is
// written after all handler side effects complete.
type ProcessedStripeEvent struct {
	EventID   string         `gorm:"column:event_id;type:varchar(128);primary_key" json:"event_id"`
	Type      string         `gorm:"column:type;type:varchar(128);not null" json:"type"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

func (ProcessedStripeEvent) TableName() string {
	return "processed_stripe_event"
}
