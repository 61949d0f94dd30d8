package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/types"
)

// AllocateTrialCredits grants time-boxed trial credits. The trial pool is
// overwritten, not added to: a user is mid-trial for at most one grant at a
// time per the calling contract.
func (s *Service) AllocateTrialCredits(ctx context.Context, userID string, amount int64, appKey string, trialEndsAt time.Time, referenceID *string) (*AllocateResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid allocation amount: %d", amount)
	}

	now := time.Now()
	acct, err := s.store.UpdateAccount(ctx, userID, func(acct *models.CreditAccount) ([]*models.CreditTransaction, error) {
		acct.TrialBalance = amount
		acct.TrialExpiresAt = &trialEndsAt
		acct.LifetimeEarned += amount
		return []*models.CreditTransaction{{
			Amount:       amount,
			BalanceAfter: acct.Total(now),
			Pool:         types.CreditPoolTrial,
			Type:         types.TransactionTypeTrialAllocation,
			Description:  fmt.Sprintf("trial credits: %s", appKey),
			AppKey:       lo.ToPtr(appKey),
			ReferenceID:  referenceID,
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("trial_credits_allocated",
		"user_id", userID, "app_key", appKey, "amount", amount, "trial_ends_at", trialEndsAt)
	go s.handleLedgerChange(ctx, userID, types.TransactionTypeTrialAllocation, amount)

	return &AllocateResult{NewBalance: acct.Balance(userID, now), Allocated: amount}, nil
}

// ExpireTrialCredits zeroes the trial pool and records the loss as a
// negative audit entry. This is not a spend: lifetimeSpent is untouched.
// No-op when the stored trial balance is already zero.
func (s *Service) ExpireTrialCredits(ctx context.Context, userID, appKey, reason string) error {
	now := time.Now()
	var lost int64

	_, err := s.store.UpdateAccount(ctx, userID, func(acct *models.CreditAccount) ([]*models.CreditTransaction, error) {
		if acct.TrialBalance == 0 {
			return nil, nil
		}
		lost = acct.TrialBalance
		acct.TrialBalance = 0
		acct.TrialExpiresAt = nil
		return []*models.CreditTransaction{{
			Amount:       -lost,
			BalanceAfter: acct.Total(now),
			Pool:         types.CreditPoolTrial,
			Type:         types.TransactionTypeTrialExpiry,
			Description:  fmt.Sprintf("trial expired: %s", reason),
			AppKey:       lo.ToPtr(appKey),
		}}, nil
	})
	if err != nil {
		return err
	}

	if lost > 0 {
		logctx.FromCtx(ctx, s.log).Infow("trial_credits_expired",
			"user_id", userID, "app_key", appKey, "lost", lost, "reason", reason)
		go s.handleLedgerChange(ctx, userID, types.TransactionTypeTrialExpiry, -lost)
	}
	return nil
}

// MergeTrialCredits moves unused trial credits into the subscription pool on
// trial-to-paid conversion, clamped to the cap headroom. The excess over
// headroom is permanently lost and logged as a separate overflow entry so
// the credited and lost amounts stay independently auditable. An already
// expired trial merges nothing; those credits were lost at expiry.
func (s *Service) MergeTrialCredits(ctx context.Context, userID, appKey string) (*MergeResult, error) {
	now := time.Now()
	var merged, overflow int64

	_, err := s.store.UpdateAccount(ctx, userID, func(acct *models.CreditAccount) ([]*models.CreditTransaction, error) {
		trial := acct.EffectiveTrialBalance(now)
		if trial == 0 {
			// still clear a stale expired grant so it cannot linger
			acct.TrialBalance = 0
			acct.TrialExpiresAt = nil
			return nil, nil
		}

		merged = min(trial, acct.Headroom())
		overflow = trial - merged

		acct.TrialBalance = 0
		acct.TrialExpiresAt = nil
		acct.SubscriptionBalance += merged

		var entries []*models.CreditTransaction
		if merged > 0 {
			entries = append(entries, &models.CreditTransaction{
				Amount:       merged,
				BalanceAfter: acct.Total(now),
				Pool:         types.CreditPoolSubscription,
				Type:         types.TransactionTypeTrialMerge,
				Description:  fmt.Sprintf("trial converted: %s", appKey),
				AppKey:       lo.ToPtr(appKey),
			})
		}
		if overflow > 0 {
			entries = append(entries, &models.CreditTransaction{
				Amount:       -overflow,
				BalanceAfter: acct.Total(now),
				Pool:         types.CreditPoolTrial,
				Type:         types.TransactionTypeTrialMergeOverflow,
				Description:  fmt.Sprintf("trial credits lost at cap: %s", appKey),
				AppKey:       lo.ToPtr(appKey),
			})
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}

	if merged > 0 || overflow > 0 {
		logctx.FromCtx(ctx, s.log).Infow("trial_credits_merged",
			"user_id", userID, "app_key", appKey, "merged", merged, "overflow", overflow)
		go s.handleLedgerChange(ctx, userID, types.TransactionTypeTrialMerge, merged)
	}
	return &MergeResult{Merged: merged, Overflow: overflow}, nil
}
