package models

import (
	"time"

	"github.com/fatflowers/creditledger/pkg/types"
)

// CreditAccount holds the three credit pools for one user. Rows are created
// lazily on the first write; reads against a missing row report a zeroed
// balance with the platform default cap.
type CreditAccount struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`
	// SubscriptionBalance is bounded by SubscriptionCap after every allocation.
	SubscriptionBalance int64 `gorm:"column:subscription_balance;type:bigint;not null;default:0" json:"subscription_balance"`
	// TopupBalance is purchased credits, uncapped.
	TopupBalance int64 `gorm:"column:topup_balance;type:bigint;not null;default:0" json:"topup_balance"`
	// TrialBalance is logically zero once TrialExpiresAt passes; expiry is
	// evaluated at read time, the stored value is not purged eagerly.
	TrialBalance    int64      `gorm:"column:trial_balance;type:bigint;not null;default:0" json:"trial_balance"`
	TrialExpiresAt  *time.Time `gorm:"column:trial_expires_at;default:null" json:"trial_expires_at"`
	SubscriptionCap int64      `gorm:"column:subscription_cap;type:bigint;not null;default:900" json:"subscription_cap"`
	// LifetimeEarned/LifetimeSpent are monotonically increasing audit counters.
	LifetimeEarned int64     `gorm:"column:lifetime_earned;type:bigint;not null;default:0" json:"lifetime_earned"`
	LifetimeSpent  int64     `gorm:"column:lifetime_spent;type:bigint;not null;default:0" json:"lifetime_spent"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (CreditAccount) TableName() string {
	return "credit_account"
}

// EffectiveTrialBalance applies read-time trial expiry.
func (a *CreditAccount) EffectiveTrialBalance(now time.Time) int64 {
	if a == nil {
		return 0
	}
	if a.TrialExpiresAt != nil && !a.TrialExpiresAt.After(now) {
		return 0
	}
	return a.TrialBalance
}

// Total is the invariant sum: subscription + topup + effective trial.
func (a *CreditAccount) Total(now time.Time) int64 {
	if a == nil {
		return 0
	}
	return a.SubscriptionBalance + a.TopupBalance + a.EffectiveTrialBalance(now)
}

// Headroom is the amount allocatable into the subscription pool before
// hitting the cap.
func (a *CreditAccount) Headroom() int64 {
	if a == nil {
		return 0
	}
	if h := a.SubscriptionCap - a.SubscriptionBalance; h > 0 {
		return h
	}
	return 0
}

// Balance builds the read model for a user at now.
func (a *CreditAccount) Balance(userID string, now time.Time) *types.CreditBalance {
	if a == nil {
		return &types.CreditBalance{
			UserID:          userID,
			SubscriptionCap: types.DefaultSubscriptionCap,
		}
	}
	return &types.CreditBalance{
		UserID:              a.UserID,
		SubscriptionBalance: a.SubscriptionBalance,
		TopupBalance:        a.TopupBalance,
		TrialBalance:        a.EffectiveTrialBalance(now),
		TrialExpiresAt:      a.TrialExpiresAt,
		SubscriptionCap:     a.SubscriptionCap,
		Total:               a.Total(now),
		LifetimeEarned:      a.LifetimeEarned,
		LifetimeSpent:       a.LifetimeSpent,
	}
}
