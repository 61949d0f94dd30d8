package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUsageHistory_NewestFirst(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	// five single-pool deductions in order T1..T5
	seedAccount(t, s, "u1", 500, 0, 0, 900, nil)
	var ids []string
	for i := 0; i < 5; i++ {
		res, err := s.DeductCredits(ctx, "u1", "render", "export", nil)
		require.NoError(t, err)
		ids = append(ids, res.TransactionID)
	}

	page, err := s.GetUsageHistory(ctx, "u1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, ids[4], page.Transactions[0].ID)
	assert.Equal(t, ids[3], page.Transactions[1].ID)

	page, err = s.GetUsageHistory(ctx, "u1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, ids[2], page.Transactions[0].ID)
	assert.Equal(t, ids[1], page.Transactions[1].ID)
}

func TestGetUsageHistory_LimitDefaults(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	page, err := s.GetUsageHistory(ctx, "empty", 0, -3)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Transactions)
}
