package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/tool"
	"github.com/fatflowers/creditledger/pkg/types"
)

// CheckCredits compares the operation's cost against the current balance.
// Read-only, safe to call repeatedly.
func (s *Service) CheckCredits(ctx context.Context, userID, appKey, operation string) (*CheckResult, error) {
	cost, ok := s.cfg.GetOperationCost(appKey, operation)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, appKey, operation)
	}
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		Sufficient: balance.Total >= cost,
		Cost:       cost,
		Balance:    balance,
	}, nil
}

// DeductCredits spends the operation's cost across the three pools in the
// fixed drain order: trial first, then top-up, then subscription. Trial
// credits expire, top-up credits are sunk cost, subscription credits renew;
// draining in that order keeps the most recoverable credits longest. One
// ledger entry is written per pool touched, each with the running total
// after that pool's share. The returned transaction id is the last entry
// written: subscription if touched, else top-up, else trial.
func (s *Service) DeductCredits(ctx context.Context, userID, appKey, operation string, referenceID *string) (*DeductResult, error) {
	cost, ok := s.cfg.GetOperationCost(appKey, operation)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, appKey, operation)
	}

	now := time.Now()
	description := fmt.Sprintf("usage: %s.%s", appKey, operation)
	var lastTxID string

	acct, err := s.store.UpdateAccount(ctx, userID, func(acct *models.CreditAccount) ([]*models.CreditTransaction, error) {
		trialAvailable := acct.EffectiveTrialBalance(now)
		total := acct.SubscriptionBalance + acct.TopupBalance + trialAvailable
		if total < cost {
			return nil, &InsufficientCreditsError{Required: cost, Available: total}
		}

		fromTrial := min(cost, trialAvailable)
		remaining := cost - fromTrial
		fromTopup := min(remaining, acct.TopupBalance)
		fromSub := remaining - fromTopup

		acct.TrialBalance -= fromTrial
		acct.TopupBalance -= fromTopup
		acct.SubscriptionBalance -= fromSub
		acct.LifetimeSpent += cost

		running := total
		var entries []*models.CreditTransaction
		appendEntry := func(pool types.CreditPool, amount int64) {
			if amount <= 0 {
				return
			}
			running -= amount
			e := &models.CreditTransaction{
				ID:           tool.GenerateUUIDV7(),
				Amount:       -amount,
				BalanceAfter: running,
				Pool:         pool,
				Type:         types.TransactionTypeUsageDeduction,
				Description:  description,
				AppKey:       lo.ToPtr(appKey),
				ReferenceID:  referenceID,
			}
			entries = append(entries, e)
			lastTxID = e.ID
		}
		appendEntry(types.CreditPoolTrial, fromTrial)
		appendEntry(types.CreditPoolTopup, fromTopup)
		appendEntry(types.CreditPoolSubscription, fromSub)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("credits_deducted",
		"user_id", userID, "app_key", appKey, "operation", operation, "cost", cost)

	return &DeductResult{
		NewBalance:    acct.Balance(userID, now),
		TransactionID: lastTxID,
	}, nil
}
