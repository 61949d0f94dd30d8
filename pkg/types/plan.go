package types

// SubscriptionStatus mirrors the payment provider's subscription states.
// Only a subset counts toward cap and credit-grant calculations.
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
)

// QualifyingStatuses are the subscription states that contribute to the
// user's subscription cap and monthly grants.
var QualifyingStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
	SubscriptionStatusPastDue,
}

// Counts reports whether a subscription in this status contributes to cap
// and grant calculations.
func (s SubscriptionStatus) Counts() bool {
	for _, q := range QualifyingStatuses {
		if s == q {
			return true
		}
	}
	return false
}

const (
	// DefaultSubscriptionCap is the cap for users with no qualifying
	// subscription, and the per-subscription fallback when no plan matches.
	DefaultSubscriptionCap int64 = 900
	// DefaultMonthlyCredits is the fallback monthly grant when no plan
	// matches an invoice's price.
	DefaultMonthlyCredits int64 = 300
)

// PlanItem maps one purchasable subscription tier to its credit economics.
type PlanItem struct {
	AppKey         string `json:"app_key" mapstructure:"app_key"`
	Tier           string `json:"tier" mapstructure:"tier"`
	StripePriceID  string `json:"stripe_price_id" mapstructure:"stripe_price_id"`
	MonthlyCredits int64  `json:"monthly_credits" mapstructure:"monthly_credits"`
	CreditCap      int64  `json:"credit_cap" mapstructure:"credit_cap"`
}

// TopupPack maps a one-time checkout price to a credit amount.
type TopupPack struct {
	Name          string `json:"name" mapstructure:"name"`
	StripePriceID string `json:"stripe_price_id" mapstructure:"stripe_price_id"`
	Credits       int64  `json:"credits" mapstructure:"credits"`
}

// OperationCost is one entry of the credit cost catalog.
type OperationCost struct {
	AppKey    string `json:"app_key" mapstructure:"app_key"`
	Operation string `json:"operation" mapstructure:"operation"`
	Cost      int64  `json:"cost" mapstructure:"cost"`
}
