package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/store/memstore"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/types"
)

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	cfg := &config.Config{
		OperationCosts: []*types.OperationCost{
			{AppKey: "scribe", Operation: "transcribe", Cost: 10},
			{AppKey: "scribe", Operation: "summarize", Cost: 12},
			{AppKey: "render", Operation: "export", Cost: 3},
		},
	}
	return NewService(cfg, zap.NewNop().Sugar(), st), st
}

// seedAccount materializes an account row with the given pool balances.
func seedAccount(t *testing.T, s *Service, userID string, sub, topup, trial, cap int64, trialExpiresAt *time.Time) {
	t.Helper()
	_, err := s.store.UpdateAccount(context.Background(), userID, func(acct *models.CreditAccount) ([]*models.CreditTransaction, error) {
		acct.SubscriptionBalance = sub
		acct.TopupBalance = topup
		acct.TrialBalance = trial
		acct.TrialExpiresAt = trialExpiresAt
		acct.SubscriptionCap = cap
		acct.LifetimeEarned = sub + topup + trial
		return nil, nil
	})
	require.NoError(t, err)
}
