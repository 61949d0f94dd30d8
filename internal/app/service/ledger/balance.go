package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/store"
	"github.com/fatflowers/creditledger/pkg/types"
)

// GetBalance reads the user's balance with trial expiry applied. A missing
// account reports a zeroed balance with the default cap; reads never create
// rows.
func (s *Service) GetBalance(ctx context.Context, userID string) (*types.CreditBalance, error) {
	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return (*models.CreditAccount)(nil).Balance(userID, time.Now()), nil
		}
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	return acct.Balance(userID, time.Now()), nil
}
