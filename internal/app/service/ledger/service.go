package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/store"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/types"
)

// Service owns all reads and writes of credit balances. No other component
// touches account rows or the transaction log directly.
type Service struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	store store.Store
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, st store.Store) *Service {
	return &Service{cfg: cfg, log: log, store: st}
}

type CheckResult struct {
	Sufficient bool                 `json:"sufficient"`
	Cost       int64                `json:"cost"`
	Balance    *types.CreditBalance `json:"balance"`
}

type DeductResult struct {
	NewBalance    *types.CreditBalance `json:"new_balance"`
	TransactionID string               `json:"transaction_id"`
}

type AllocateResult struct {
	NewBalance *types.CreditBalance `json:"new_balance"`
	Allocated  int64                `json:"allocated"`
}

type MergeResult struct {
	Merged   int64 `json:"merged"`
	Overflow int64 `json:"overflow"`
}

type HistoryPage struct {
	Transactions []*TransactionItem `json:"transactions"`
	Total        int64              `json:"total"`
}

// handleLedgerChange runs post-commit side effects (emails, product
// notifications). It must never gate the ledger operation that triggered it.
func (s *Service) handleLedgerChange(ctx context.Context, userID string, txType types.TransactionType, amount int64) {
	logctx.FromCtx(ctx, s.log).Infow("ledger_change",
		"user_id", userID,
		"type", txType,
		"amount", amount,
	)
}
