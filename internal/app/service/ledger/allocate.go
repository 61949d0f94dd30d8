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

// AllocateSubscriptionCredits grants monthly credits into the subscription
// pool, clamped to the cap headroom. An account already at cap allocates
// zero and writes no ledger entry; that is a normal outcome, not an error.
func (s *Service) AllocateSubscriptionCredits(ctx context.Context, userID string, amount int64, appKey string, referenceID *string) (*AllocateResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid allocation amount: %d", amount)
	}

	now := time.Now()
	var allocated int64

	acct, err := s.store.UpdateAccount(ctx, userID, func(acct *models.CreditAccount) ([]*models.CreditTransaction, error) {
		allocated = min(amount, acct.Headroom())
		if allocated == 0 {
			return nil, nil
		}
		acct.SubscriptionBalance += allocated
		acct.LifetimeEarned += allocated
		return []*models.CreditTransaction{{
			Amount:       allocated,
			BalanceAfter: acct.Total(now),
			Pool:         types.CreditPoolSubscription,
			Type:         types.TransactionTypeSubscriptionAllocation,
			Description:  fmt.Sprintf("monthly credits: %s", appKey),
			AppKey:       lo.ToPtr(appKey),
			ReferenceID:  referenceID,
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	if allocated > 0 {
		logctx.FromCtx(ctx, s.log).Infow("subscription_credits_allocated",
			"user_id", userID, "app_key", appKey, "requested", amount, "allocated", allocated)
		go s.handleLedgerChange(ctx, userID, types.TransactionTypeSubscriptionAllocation, allocated)
	}
	return &AllocateResult{NewBalance: acct.Balance(userID, now), Allocated: allocated}, nil
}

// AllocateTopUpCredits grants purchased credits. The top-up pool is
// uncapped, so the full amount always lands.
func (s *Service) AllocateTopUpCredits(ctx context.Context, userID string, amount int64, packName string, referenceID *string) (*AllocateResult, error) {
	return s.allocateTopupPool(ctx, userID, amount, types.TransactionTypeTopupPurchase,
		fmt.Sprintf("top-up pack: %s", packName), referenceID)
}

// AllocateRetentionBonus grants credits offered in the cancellation flow.
// Mechanically a top-up, tagged separately so audits can tell incentives
// from purchases.
func (s *Service) AllocateRetentionBonus(ctx context.Context, userID string, amount int64) (*AllocateResult, error) {
	return s.allocateTopupPool(ctx, userID, amount, types.TransactionTypeRetentionBonus,
		"retention bonus", nil)
}

func (s *Service) allocateTopupPool(ctx context.Context, userID string, amount int64, txType types.TransactionType, description string, referenceID *string) (*AllocateResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid allocation amount: %d", amount)
	}

	now := time.Now()
	acct, err := s.store.UpdateAccount(ctx, userID, func(acct *models.CreditAccount) ([]*models.CreditTransaction, error) {
		acct.TopupBalance += amount
		acct.LifetimeEarned += amount
		return []*models.CreditTransaction{{
			Amount:       amount,
			BalanceAfter: acct.Total(now),
			Pool:         types.CreditPoolTopup,
			Type:         txType,
			Description:  description,
			ReferenceID:  referenceID,
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("topup_credits_allocated",
		"user_id", userID, "type", txType, "amount", amount)
	go s.handleLedgerChange(ctx, userID, txType, amount)

	return &AllocateResult{NewBalance: acct.Balance(userID, now), Allocated: amount}, nil
}
