package models

import (
	"time"

	"github.com/fatflowers/creditledger/pkg/types"
)

// CreditTransaction is one append-only ledger entry. Rows are immutable once
// written; a deduction that spans multiple pools writes one row per pool.
type CreditTransaction struct {
	ID     string `gorm:"column:id;primary_key;type:uuid;index:idx_credit_tx_user_id_id,priority:2,sort:desc" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;index:idx_credit_tx_user_id_id,priority:1" json:"user_id"`
	// Amount is signed: negative means credits left the account.
	Amount int64 `gorm:"column:amount;type:bigint;not null" json:"amount"`
	// BalanceAfter snapshots the account total after this entry applied.
	BalanceAfter int64                 `gorm:"column:balance_after;type:bigint;not null" json:"balance_after"`
	Pool         types.CreditPool      `gorm:"column:pool;type:varchar(32);not null" json:"pool"`
	Type         types.TransactionType `gorm:"column:type;type:varchar(64);not null" json:"type"`
	Description  string                `gorm:"column:description;type:varchar(256)" json:"description"`
	AppKey       *string               `gorm:"column:app_key;type:varchar(64)" json:"app_key"`
	// ReferenceID correlates the entry with an external object (Stripe
	// invoice, checkout session, job id). Tracing only; idempotency is
	// enforced by event id in the webhook synchronizer.
	ReferenceID *string   `gorm:"column:reference_id;type:varchar(128);index" json:"reference_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transaction"
}
