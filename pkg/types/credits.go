package types

import "time"

// CreditPool names one of the three buckets a user's credits live in.
type CreditPool string

const (
	CreditPoolSubscription CreditPool = "subscription"
	CreditPoolTopup        CreditPool = "topup"
	CreditPoolTrial        CreditPool = "trial"
)

// TransactionType tags a ledger entry with the operation that produced it.
type TransactionType string

const (
	TransactionTypeUsageDeduction         TransactionType = "usage_deduction"
	TransactionTypeSubscriptionAllocation TransactionType = "subscription_allocation"
	TransactionTypeTopupPurchase          TransactionType = "topup_purchase"
	TransactionTypeTrialAllocation        TransactionType = "trial_allocation"
	TransactionTypeTrialExpiry            TransactionType = "trial_expiry"
	TransactionTypeTrialMerge             TransactionType = "trial_merge"
	TransactionTypeTrialMergeOverflow     TransactionType = "trial_merge_overflow"
	TransactionTypeRetentionBonus         TransactionType = "retention_bonus"
)

// CreditBalance is the read model returned by the balance engine. Trial
// expiry is already applied: TrialBalance is 0 once TrialExpiresAt passes,
// regardless of what the account row still stores.
type CreditBalance struct {
	UserID              string     `json:"user_id"`
	SubscriptionBalance int64      `json:"subscription_balance"`
	TopupBalance        int64      `json:"topup_balance"`
	TrialBalance        int64      `json:"trial_balance"`
	TrialExpiresAt      *time.Time `json:"trial_expires_at,omitempty"`
	SubscriptionCap     int64      `json:"subscription_cap"`
	Total               int64      `json:"total"`
	LifetimeEarned      int64      `json:"lifetime_earned"`
	LifetimeSpent       int64      `json:"lifetime_spent"`
}
