package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samber/lo"

	"github.com/fatflowers/creditledger/pkg/types"
)

func TestAllocateSubscriptionCredits_ClampedToHeadroom(t *testing.T) {
	s, st := newTestService(t)
	seedAccount(t, s, "u1", 850, 0, 0, 900, nil)

	res, err := s.AllocateSubscriptionCredits(context.Background(), "u1", 300, "scribe", lo.ToPtr("in_123"))
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Allocated)
	assert.Equal(t, int64(900), res.NewBalance.SubscriptionBalance)
	assert.LessOrEqual(t, res.NewBalance.SubscriptionBalance, res.NewBalance.SubscriptionCap)

	rows, _, err := st.ListTransactions(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.TransactionTypeSubscriptionAllocation, rows[0].Type)
	assert.Equal(t, int64(50), rows[0].Amount)
	assert.Equal(t, "in_123", *rows[0].ReferenceID)
}

func TestAllocateSubscriptionCredits_AtCapIsSilentNoop(t *testing.T) {
	s, st := newTestService(t)
	seedAccount(t, s, "u1", 900, 0, 0, 900, nil)

	res, err := s.AllocateSubscriptionCredits(context.Background(), "u1", 300, "scribe", nil)
	require.NoError(t, err)
	assert.Zero(t, res.Allocated)
	assert.Equal(t, int64(900), res.NewBalance.SubscriptionBalance)

	_, total, err := st.ListTransactions(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total, "at-cap allocation must not write a transaction")
}

func TestAllocateSubscriptionCredits_LazyAccountCreation(t *testing.T) {
	s, _ := newTestService(t)

	res, err := s.AllocateSubscriptionCredits(context.Background(), "fresh", 300, "scribe", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Allocated)
	assert.Equal(t, types.DefaultSubscriptionCap, res.NewBalance.SubscriptionCap)
	assert.Equal(t, int64(300), res.NewBalance.LifetimeEarned)
}

func TestAllocateTopUpCredits_Uncapped(t *testing.T) {
	s, st := newTestService(t)
	seedAccount(t, s, "u1", 900, 0, 0, 900, nil)

	res, err := s.AllocateTopUpCredits(context.Background(), "u1", 5000, "mega", lo.ToPtr("cs_42"))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Allocated)
	assert.Equal(t, int64(5000), res.NewBalance.TopupBalance)
	assert.Equal(t, int64(5900), res.NewBalance.Total)

	rows, _, err := st.ListTransactions(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.TransactionTypeTopupPurchase, rows[0].Type)
	assert.Equal(t, types.CreditPoolTopup, rows[0].Pool)
}

func TestAllocateRetentionBonus_TaggedSeparately(t *testing.T) {
	s, st := newTestService(t)

	res, err := s.AllocateRetentionBonus(context.Background(), "u1", 200)
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.NewBalance.TopupBalance)

	rows, _, err := st.ListTransactions(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.TransactionTypeRetentionBonus, rows[0].Type)
	assert.Equal(t, types.CreditPoolTopup, rows[0].Pool)
}

func TestAllocate_RejectsNonPositiveAmounts(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.AllocateSubscriptionCredits(ctx, "u1", 0, "scribe", nil)
	assert.Error(t, err)
	_, err = s.AllocateTopUpCredits(ctx, "u1", -5, "pack", nil)
	assert.Error(t, err)
	_, err = s.AllocateRetentionBonus(ctx, "u1", 0)
	assert.Error(t, err)
}
