package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/store"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/types"
)

// Service maintains the ledger's read-only view of provider subscriptions
// and reconciles each user's subscription cap from it.
type Service struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	store store.Store
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, st store.Store) *Service {
	return &Service{cfg: cfg, log: log, store: st}
}

// SyncSubscription upserts the provider's current view of one subscription.
func (s *Service) SyncSubscription(ctx context.Context, rec *models.SubscriptionRecord) error {
	if rec.UserID == "" || rec.StripeSubscriptionID == "" {
		return fmt.Errorf("invalid subscription record: user id and stripe subscription id required")
	}
	if err := s.store.UpsertSubscription(ctx, rec); err != nil {
		return fmt.Errorf("failed to sync subscription: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_synced",
		"user_id", rec.UserID, "stripe_subscription_id", rec.StripeSubscriptionID, "status", rec.Status)
	return nil
}

// GetSubscription returns the stored record for a provider subscription id.
func (s *Service) GetSubscription(ctx context.Context, stripeSubscriptionID string) (*models.SubscriptionRecord, error) {
	return s.store.GetSubscription(ctx, stripeSubscriptionID)
}

// RecalculateCap recomputes the user's subscription cap from all qualifying
// subscriptions (active, trialing, past_due). Contributions are additive
// across apps; a user on two plans gets the sum of both caps. Per
// subscription the plan resolves by price id first, then the first plan for
// the app key, then the platform default.
//
// Cap recalculation must never block the sync flow that invoked it: on a
// store read failure it logs and returns the user's current cap (or the
// default) instead of an error.
func (s *Service) RecalculateCap(ctx context.Context, userID string) int64 {
	log := logctx.FromCtx(ctx, s.log)

	recs, err := s.store.ListSubscriptions(ctx, userID, types.QualifyingStatuses)
	if err != nil {
		log.Errorw("cap_recalc_list_failed", "user_id", userID, "err", err)
		return s.currentCap(ctx, userID)
	}

	newCap := types.DefaultSubscriptionCap
	if len(recs) > 0 {
		newCap = 0
		for _, rec := range recs {
			newCap += s.capContribution(rec)
		}
	}

	_, err = s.store.UpdateAccount(ctx, userID, func(acct *models.CreditAccount) ([]*models.CreditTransaction, error) {
		acct.SubscriptionCap = newCap
		return nil, nil
	})
	if err != nil {
		log.Errorw("cap_recalc_write_failed", "user_id", userID, "cap", newCap, "err", err)
		return s.currentCap(ctx, userID)
	}

	log.Infow("cap_recalculated", "user_id", userID, "cap", newCap, "subscriptions", len(recs))
	return newCap
}

func (s *Service) capContribution(rec *models.SubscriptionRecord) int64 {
	if plan := s.cfg.ResolvePlan(rec.AppKey, rec.StripePriceID); plan != nil {
		return plan.CreditCap
	}
	return types.DefaultSubscriptionCap
}

// MonthlyCredits resolves the monthly grant for a subscription the same way
// the cap resolves its plan, so the two cannot drift.
func (s *Service) MonthlyCredits(appKey, stripePriceID string) int64 {
	if plan := s.cfg.ResolvePlan(appKey, stripePriceID); plan != nil {
		return plan.MonthlyCredits
	}
	return types.DefaultMonthlyCredits
}

func (s *Service) currentCap(ctx context.Context, userID string) int64 {
	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrAccountNotFound) {
			logctx.FromCtx(ctx, s.log).Errorw("cap_read_failed", "user_id", userID, "err", err)
		}
		return types.DefaultSubscriptionCap
	}
	return acct.SubscriptionCap
}

// BuildRecord assembles a SubscriptionRecord from provider event fields.
func BuildRecord(userID, appKey, stripeSubID, stripePriceID string, status types.SubscriptionStatus, periodEnd *time.Time) *models.SubscriptionRecord {
	return &models.SubscriptionRecord{
		UserID:               userID,
		AppKey:               appKey,
		StripeSubscriptionID: stripeSubID,
		StripePriceID:        stripePriceID,
		Status:               status,
		CurrentPeriodEnd:     periodEnd,
	}
}
