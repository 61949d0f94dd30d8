package memstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/store"
	"github.com/fatflowers/creditledger/pkg/types"
)

func TestGetAccount_MissingRow(t *testing.T) {
	s := New()
	_, err := s.GetAccount(context.Background(), "nobody")
	require.ErrorIs(t, err, store.ErrAccountNotFound)
}

func TestUpdateAccount_LazyCreateWithDefaultCap(t *testing.T) {
	s := New()
	acct, err := s.UpdateAccount(context.Background(), "u1", func(a *models.CreditAccount) ([]*models.CreditTransaction, error) {
		assert.Equal(t, types.DefaultSubscriptionCap, a.SubscriptionCap)
		a.TopupBalance = 100
		return []*models.CreditTransaction{{Amount: 100, Pool: types.CreditPoolTopup, Type: types.TransactionTypeTopupPurchase, BalanceAfter: 100}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.TopupBalance)

	rows, total, err := s.ListTransactions(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "u1", rows[0].UserID)
	assert.NotEmpty(t, rows[0].ID)
}

func TestUpdateAccount_RollbackOnError(t *testing.T) {
	s := New()
	_, err := s.UpdateAccount(context.Background(), "u1", func(a *models.CreditAccount) ([]*models.CreditTransaction, error) {
		a.TopupBalance = 100
		return nil, nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.UpdateAccount(context.Background(), "u1", func(a *models.CreditAccount) ([]*models.CreditTransaction, error) {
		a.TopupBalance = 0
		return []*models.CreditTransaction{{Amount: -100}}, boom
	})
	require.ErrorIs(t, err, boom)

	acct, err := s.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.TopupBalance, "failed update must leave the row untouched")

	_, total, err := s.ListTransactions(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total, "failed update must not append entries")
}

func TestListTransactions_NewestFirstPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := s.UpdateAccount(ctx, "u1", func(a *models.CreditAccount) ([]*models.CreditTransaction, error) {
			return []*models.CreditTransaction{{ID: fmt.Sprintf("t%d", i), Amount: int64(i)}}, nil
		})
		require.NoError(t, err)
	}

	rows, total, err := s.ListTransactions(ctx, "u1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, rows, 2)
	assert.Equal(t, "t5", rows[0].ID)
	assert.Equal(t, "t4", rows[1].ID)

	rows, _, err = s.ListTransactions(ctx, "u1", 2, 4)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t1", rows[0].ID)
}

func TestSubscriptions_UpsertAndFilter(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.UpsertSubscription(ctx, &models.SubscriptionRecord{
		UserID: "u1", AppKey: "scribe", StripeSubscriptionID: "sub_1", StripePriceID: "price_a", Status: types.SubscriptionStatusTrialing,
	}))
	require.NoError(t, s.UpsertSubscription(ctx, &models.SubscriptionRecord{
		UserID: "u1", AppKey: "render", StripeSubscriptionID: "sub_2", StripePriceID: "price_b", Status: types.SubscriptionStatusCanceled,
	}))

	recs, err := s.ListSubscriptions(ctx, "u1", types.QualifyingStatuses)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "sub_1", recs[0].StripeSubscriptionID)

	// status change keeps the same record id
	first, err := s.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	require.NoError(t, s.UpsertSubscription(ctx, &models.SubscriptionRecord{
		UserID: "u1", AppKey: "scribe", StripeSubscriptionID: "sub_1", StripePriceID: "price_a", Status: types.SubscriptionStatusActive,
	}))
	second, err := s.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, types.SubscriptionStatusActive, second.Status)
}

func TestProcessedEvents(t *testing.T) {
	s := New()
	ctx := context.Background()

	ok, err := s.IsEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkEventProcessed(ctx, &models.ProcessedStripeEvent{EventID: "evt_1", Type: "invoice.paid"}))

	ok, err = s.IsEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, ok)
}
