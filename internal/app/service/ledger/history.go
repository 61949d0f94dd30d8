package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/types"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// TransactionItem is the API view of one ledger entry.
type TransactionItem struct {
	ID           string                `json:"id"`
	Amount       int64                 `json:"amount"`
	BalanceAfter int64                 `json:"balance_after"`
	Pool         types.CreditPool      `json:"pool"`
	Type         types.TransactionType `json:"type"`
	Description  string                `json:"description"`
	AppKey       *string               `json:"app_key,omitempty"`
	ReferenceID  *string               `json:"reference_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// GetUsageHistory pages the user's ledger, newest first.
func (s *Service) GetUsageHistory(ctx context.Context, userID string, limit, offset int) (*HistoryPage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, total, err := s.store.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage history: %w", err)
	}

	items := lo.Map(rows, func(m *models.CreditTransaction, _ int) *TransactionItem {
		return &TransactionItem{
			ID:           m.ID,
			Amount:       m.Amount,
			BalanceAfter: m.BalanceAfter,
			Pool:         m.Pool,
			Type:         m.Type,
			Description:  m.Description,
			AppKey:       m.AppKey,
			ReferenceID:  m.ReferenceID,
			CreatedAt:    m.CreatedAt,
		}
	})
	return &HistoryPage{Transactions: items, Total: total}, nil
}
