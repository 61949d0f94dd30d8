package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fatflowers/creditledger/pkg/types"
)

func TestCreditAccount_EffectiveTrialBalance(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		acct *CreditAccount
		want int64
	}{
		{name: "nil account", acct: nil, want: 0},
		{name: "no expiry set", acct: &CreditAccount{TrialBalance: 50}, want: 50},
		{name: "expiry in future", acct: &CreditAccount{TrialBalance: 50, TrialExpiresAt: &future}, want: 50},
		{name: "expiry in past", acct: &CreditAccount{TrialBalance: 50, TrialExpiresAt: &past}, want: 0},
		{name: "expiry exactly now", acct: &CreditAccount{TrialBalance: 50, TrialExpiresAt: &now}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.acct.EffectiveTrialBalance(now))
		})
	}
}

func TestCreditAccount_TotalAndHeadroom(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	acct := &CreditAccount{
		UserID:              "u1",
		SubscriptionBalance: 100,
		TopupBalance:        10,
		TrialBalance:        5,
		SubscriptionCap:     900,
	}
	assert.Equal(t, int64(115), acct.Total(now))
	assert.Equal(t, int64(800), acct.Headroom())

	// expired trial drops out of the total but the stored value stays
	acct.TrialExpiresAt = &past
	assert.Equal(t, int64(110), acct.Total(now))
	assert.Equal(t, int64(5), acct.TrialBalance)

	// over-cap (cap lowered after allocation) clamps headroom to zero
	acct.SubscriptionCap = 50
	assert.Equal(t, int64(0), acct.Headroom())
}

func TestCreditAccount_Balance_NilDefaults(t *testing.T) {
	var acct *CreditAccount
	b := acct.Balance("u-missing", time.Now())
	assert.Equal(t, "u-missing", b.UserID)
	assert.Equal(t, types.DefaultSubscriptionCap, b.SubscriptionCap)
	assert.Zero(t, b.Total)
	assert.Zero(t, b.LifetimeEarned)
}
