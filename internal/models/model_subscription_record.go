package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/creditledger/pkg/types"
)

// SubscriptionRecord is the ledger's view of one provider-side subscription.
// It is written only by the webhook synchronizer and read by the cap
// reconciler; the ledger never mutates provider state.
type SubscriptionRecord struct {
	ID                   string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID               string                   `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	AppKey               string                   `gorm:"column:app_key;type:varchar(64);not null" json:"app_key"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;type:varchar(128);not null;uniqueIndex" json:"stripe_subscription_id"`
	StripePriceID        string                   `gorm:"column:stripe_price_id;type:varchar(128);not null" json:"stripe_price_id"`
	Status               types.SubscriptionStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	// Extra keeps provider metadata we do not model (promo details, seat
	// counts) for debugging.
	Extra     datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (SubscriptionRecord) TableName() string {
	return "subscription_record"
}
