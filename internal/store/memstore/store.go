package memstore

import (
	"context"
	"sync"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/store"
	"github.com/fatflowers/creditledger/pkg/tool"
	"github.com/fatflowers/creditledger/pkg/types"
)

// Store is an in-memory ledger store. Unit tests run against it, and it is
// good enough as a dev backend. A single mutex serializes all mutations,
// which trivially satisfies the Store atomicity contract.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]*models.CreditAccount
	transactions map[string][]*models.CreditTransaction
	subs         map[string]*models.SubscriptionRecord // keyed by stripe subscription id
	events       map[string]*models.ProcessedStripeEvent
}

func New() *Store {
	return &Store{
		accounts:     make(map[string]*models.CreditAccount),
		transactions: make(map[string][]*models.CreditTransaction),
		subs:         make(map[string]*models.SubscriptionRecord),
		events:       make(map[string]*models.ProcessedStripeEvent),
	}
}

var _ store.Store = (*Store)(nil)

func copyAccount(a *models.CreditAccount) *models.CreditAccount {
	cp := *a
	if a.TrialExpiresAt != nil {
		t := *a.TrialExpiresAt
		cp.TrialExpiresAt = &t
	}
	return &cp
}

func (s *Store) GetAccount(_ context.Context, userID string) (*models.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[userID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return copyAccount(acct), nil
}

func (s *Store) UpdateAccount(_ context.Context, userID string, fn store.AccountUpdateFn) (*models.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userID]
	if !ok {
		acct = &models.CreditAccount{
			ID:              tool.GenerateUUIDV7(),
			UserID:          userID,
			SubscriptionCap: types.DefaultSubscriptionCap,
		}
	}

	// Work on a copy so a failing fn leaves the stored row untouched.
	work := copyAccount(acct)
	entries, err := fn(work)
	if err != nil {
		return nil, err
	}

	s.accounts[userID] = work
	for _, e := range entries {
		if e.ID == "" {
			e.ID = tool.GenerateUUIDV7()
		}
		e.UserID = userID
		s.transactions[userID] = append(s.transactions[userID], e)
	}
	return copyAccount(work), nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.transactions[userID]
	total := int64(len(all))

	// newest first: entries are appended in insertion order
	out := make([]*models.CreditTransaction, 0, limit)
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, total, nil
}

func (s *Store) ListSubscriptions(_ context.Context, userID string, statuses []types.SubscriptionStatus) ([]*models.SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.SubscriptionRecord
	for _, rec := range s.subs {
		if rec.UserID != userID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, st := range statuses {
				if rec.Status == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) GetSubscription(_ context.Context, stripeSubscriptionID string) (*models.SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.subs[stripeSubscriptionID]
	if !ok {
		return nil, store.ErrSubscriptionNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) UpsertSubscription(_ context.Context, rec *models.SubscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		if original, ok := s.subs[rec.StripeSubscriptionID]; ok {
			rec.ID = original.ID
		} else {
			rec.ID = tool.GenerateUUIDV7()
		}
	}
	cp := *rec
	s.subs[rec.StripeSubscriptionID] = &cp
	return nil
}

func (s *Store) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[eventID]
	return ok, nil
}

func (s *Store) MarkEventProcessed(_ context.Context, rec *models.ProcessedStripeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[rec.EventID] = rec
	return nil
}
