package gormstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/store"
	"github.com/fatflowers/creditledger/pkg/tool"
	"github.com/fatflowers/creditledger/pkg/types"
)

// Store is the postgres-backed ledger store. Per-user mutations are
// serialized with a row lock on credit_account, which is what makes a
// deduction racing a webhook allocation safe.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) store.Store {
	return &Store{db: db}
}

var Module = fx.Options(
	fx.Provide(New),
)

func (s *Store) GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error) {
	var acct models.CreditAccount
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get credit account: %w", err)
	}
	return &acct, nil
}

func (s *Store) UpdateAccount(ctx context.Context, userID string, fn store.AccountUpdateFn) (*models.CreditAccount, error) {
	var out *models.CreditAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lazy create first so the locked read below always finds a row.
		// OnConflict DoNothing makes the create a no-op when another
		// request already materialized the account.
		seed := models.CreditAccount{
			ID:              tool.GenerateUUIDV7(),
			UserID:          userID,
			SubscriptionCap: types.DefaultSubscriptionCap,
		}
		if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
			Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to ensure credit account: %w", err)
		}

		var acct models.CreditAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&acct).Error; err != nil {
			return fmt.Errorf("failed to lock credit account: %w", err)
		}

		entries, err := fn(&acct)
		if err != nil {
			return err
		}

		if err := tx.Save(&acct).Error; err != nil {
			return fmt.Errorf("failed to update credit account: %w", err)
		}
		for _, e := range entries {
			if e.ID == "" {
				e.ID = tool.GenerateUUIDV7()
			}
			e.UserID = acct.UserID
		}
		if len(entries) > 0 {
			if err := tx.Create(entries).Error; err != nil {
				return fmt.Errorf("failed to append credit transactions: %w", err)
			}
		}
		out = &acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.CreditTransaction{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count credit transactions: %w", err)
	}

	var rows []*models.CreditTransaction
	// UUIDv7 ids are time ordered, so id desc is newest first and matches
	// the composite (user_id, id desc) index.
	if err := q.Order("id desc").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	return rows, total, nil
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string, statuses []types.SubscriptionStatus) ([]*models.SubscriptionRecord, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var rows []*models.SubscriptionRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscription records: %w", err)
	}
	return rows, nil
}

func (s *Store) GetSubscription(ctx context.Context, stripeSubscriptionID string) (*models.SubscriptionRecord, error) {
	var rec models.SubscriptionRecord
	if err := s.db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription record: %w", err)
	}
	return &rec, nil
}

func (s *Store) UpsertSubscription(ctx context.Context, rec *models.SubscriptionRecord) error {
	var original models.SubscriptionRecord
	err := s.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", rec.StripeSubscriptionID).
		First(&original).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load original subscription record: %w", err)
	}

	if original.ID != "" {
		rec.ID = original.ID
		rec.CreatedAt = original.CreatedAt
	} else if rec.ID == "" {
		rec.ID = tool.GenerateUUIDV7()
	}

	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("failed to upsert subscription record: %w", err)
	}
	return nil
}

func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ProcessedStripeEvent{}).
		Where("event_id = ?", eventID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return count > 0, nil
}

func (s *Store) MarkEventProcessed(ctx context.Context, rec *models.ProcessedStripeEvent) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}
