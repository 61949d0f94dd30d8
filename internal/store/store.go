package store

import (
	"context"
	"errors"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/types"
)

var (
	// ErrAccountNotFound is returned by reads against a user with no
	// account row. Reads never create rows as a side effect.
	ErrAccountNotFound = errors.New("credit account not found")
	// ErrSubscriptionNotFound is returned when no subscription record
	// matches the provider subscription id.
	ErrSubscriptionNotFound = errors.New("subscription record not found")
)

// AccountUpdateFn mutates the locked account row in place and returns the
// ledger entries to append. Returning an error rolls back the whole unit;
// the account is left untouched and no entries are written.
type AccountUpdateFn func(acct *models.CreditAccount) ([]*models.CreditTransaction, error)

// Store is the persistence boundary of the ledger. One UpdateAccount call is
// one atomic unit: the account mutation and its ledger entries commit
// together or not at all, and concurrent updates for the same user are
// serialized by the implementation.
type Store interface {
	// GetAccount reads the account row. ErrAccountNotFound when absent.
	GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error)
	// UpdateAccount creates the account row lazily if missing (with the
	// platform default cap), locks it, applies fn, and appends the entries
	// fn returns. The committed account state is returned.
	UpdateAccount(ctx context.Context, userID string, fn AccountUpdateFn) (*models.CreditAccount, error)
	// ListTransactions pages the user's ledger newest first and returns the
	// total entry count.
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, int64, error)

	// ListSubscriptions returns the user's subscription records, optionally
	// filtered to the given statuses.
	ListSubscriptions(ctx context.Context, userID string, statuses []types.SubscriptionStatus) ([]*models.SubscriptionRecord, error)
	// GetSubscription looks up a record by provider subscription id.
	GetSubscription(ctx context.Context, stripeSubscriptionID string) (*models.SubscriptionRecord, error)
	// UpsertSubscription writes the provider's view of one subscription,
	// keyed by stripe subscription id.
	UpsertSubscription(ctx context.Context, rec *models.SubscriptionRecord) error

	// IsEventProcessed reports whether the idempotency marker for eventID
	// exists.
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	// MarkEventProcessed writes the idempotency marker. Called only after
	// all handler side effects completed.
	MarkEventProcessed(ctx context.Context, rec *models.ProcessedStripeEvent) error
}
