package stripesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/subscription"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/store"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/types"
)

// IntakeLogger records webhook intake for debugging. Implementations must
// not block event handling.
type IntakeLogger interface {
	Save(ctx context.Context, entry *models.WebhookEventLog)
}

// Service turns verified Stripe events into ledger operations, exactly once
// per event id. Signature verification happens at the HTTP boundary; by the
// time an event reaches HandleEvent it is trusted.
type Service struct {
	cfg    *config.Config
	log    *zap.SugaredLogger
	store  store.Store
	ledger *ledger.Service
	subs   *subscription.Service
	intake IntakeLogger
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, st store.Store, led *ledger.Service, subs *subscription.Service, intake IntakeLogger) *Service {
	return &Service{cfg: cfg, log: log, store: st, ledger: led, subs: subs, intake: intake}
}

func (s *Service) Logger() *zap.SugaredLogger { return s.log }

// HandleEvent applies one event's side effects. Replays of an already
// processed event id short-circuit as OutcomeDuplicate without re-running
// any handler. A handler error leaves the event unmarked so the provider
// retries; the marker is written only after all side effects completed.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) (Outcome, error) {
	log := logctx.FromCtx(ctx, s.log)

	done, err := s.store.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return "", fmt.Errorf("failed to check event idempotency: %w", err)
	}
	if done {
		log.Infow("stripe_event_duplicate", "event_id", event.ID, "type", event.Type)
		s.logIntake(ctx, event, nil, models.WebhookEventLogStatusDuplicate, nil)
		return OutcomeDuplicate, nil
	}

	s.logIntake(ctx, event, nil, models.WebhookEventLogStatusReceived, nil)

	outcome, userID, handlerErr := s.dispatch(ctx, event)
	if handlerErr != nil {
		log.Errorw("stripe_event_handle_failed", "event_id", event.ID, "type", event.Type, "err", handlerErr)
		s.logIntake(ctx, event, userID, models.WebhookEventLogStatusHandleFailed, handlerErr)
		return "", handlerErr
	}

	if err := s.store.MarkEventProcessed(ctx, &models.ProcessedStripeEvent{
		EventID: event.ID,
		Type:    string(event.Type),
		Payload: datatypes.JSON(event.Data.Raw),
	}); err != nil {
		// side effects already ran; the provider will retry and re-apply
		// them, so this failure has to be loud
		log.Errorw("stripe_event_mark_failed", "event_id", event.ID, "err", err)
		return "", fmt.Errorf("failed to mark event processed: %w", err)
	}

	log.Infow("stripe_event_handled", "event_id", event.ID, "type", event.Type, "outcome", outcome)
	s.logIntake(ctx, event, userID, models.WebhookEventLogStatusHandled, nil)
	return outcome, nil
}

func (s *Service) dispatch(ctx context.Context, event stripe.Event) (Outcome, *string, error) {
	switch string(event.Type) {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "invoice.paid":
		return s.handleInvoicePaid(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted", "customer.subscription.paused", "customer.subscription.resumed":
		return s.handleSubscriptionStateChange(ctx, event)
	default:
		// forward compatibility: acknowledge what we do not consume
		logctx.FromCtx(ctx, s.log).Infow("stripe_event_unhandled", "event_id", event.ID, "type", event.Type)
		return OutcomeIgnored, nil, nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) (Outcome, *string, error) {
	log := logctx.FromCtx(ctx, s.log)

	sess, err := parseCheckoutCompleted(event.Data.Raw, func(priceID string) (int64, string, bool) {
		if pack := s.cfg.GetTopupPackByPriceID(priceID); pack != nil {
			return pack.Credits, pack.Name, true
		}
		return 0, "", false
	})
	if err != nil {
		return "", nil, err
	}
	if sess.UserID == "" {
		// no metadata link to a user; retrying cannot fix it
		log.Warnw("checkout_without_user", "event_id", event.ID, "session_id", sess.SessionID)
		return OutcomeIgnored, nil, nil
	}

	switch sess.PurchaseType {
	case purchaseTypeTopup:
		if sess.Credits <= 0 {
			log.Warnw("checkout_topup_without_credits", "event_id", event.ID, "session_id", sess.SessionID)
			return OutcomeIgnored, lo.ToPtr(sess.UserID), nil
		}
		_, err := s.ledger.AllocateTopUpCredits(ctx, sess.UserID, sess.Credits, sess.PackName, lo.ToPtr(sess.SessionID))
		return OutcomeProcessed, lo.ToPtr(sess.UserID), err
	case purchaseTypeTrial:
		credits := sess.Credits
		if credits <= 0 {
			credits = types.DefaultMonthlyCredits
		}
		_, err := s.ledger.AllocateTrialCredits(ctx, sess.UserID, credits, sess.AppKey, time.Now().Add(trialPeriod), lo.ToPtr(sess.SessionID))
		return OutcomeProcessed, lo.ToPtr(sess.UserID), err
	default:
		log.Infow("checkout_unknown_purchase_type", "event_id", event.ID, "purchase_type", sess.PurchaseType)
		return OutcomeIgnored, lo.ToPtr(sess.UserID), nil
	}
}

func (s *Service) handleInvoicePaid(ctx context.Context, event stripe.Event) (Outcome, *string, error) {
	log := logctx.FromCtx(ctx, s.log)

	inv, err := parseInvoicePaid(event.Data.Raw)
	if err != nil {
		return "", nil, err
	}

	// the synced record fills gaps the invoice payload leaves (user, app,
	// current status)
	var rec *models.SubscriptionRecord
	if inv.SubscriptionID != "" {
		if r, err := s.subs.GetSubscription(ctx, inv.SubscriptionID); err == nil {
			rec = r
		} else if !errors.Is(err, store.ErrSubscriptionNotFound) {
			return "", nil, err
		}
	}
	userID := inv.UserID
	appKey := inv.AppKey
	if rec != nil {
		if userID == "" {
			userID = rec.UserID
		}
		if appKey == "" {
			appKey = rec.AppKey
		}
	}
	if userID == "" {
		log.Warnw("invoice_without_user", "event_id", event.ID, "invoice_id", inv.InvoiceID)
		return OutcomeIgnored, nil, nil
	}

	// a subscription_create invoice while the subscription is trialing is
	// the setup charge, not a recurring grant
	if inv.BillingReason == "subscription_create" && rec != nil && rec.Status == types.SubscriptionStatusTrialing {
		log.Infow("invoice_trial_setup_skipped", "event_id", event.ID, "invoice_id", inv.InvoiceID, "user_id", userID)
		return OutcomeProcessed, lo.ToPtr(userID), nil
	}

	if inv.BillingReason == "subscription_cycle" {
		if _, err := s.ledger.MergeTrialCredits(ctx, userID, appKey); err != nil {
			return "", lo.ToPtr(userID), fmt.Errorf("failed to merge trial credits: %w", err)
		}
	}

	amount := s.subs.MonthlyCredits(appKey, inv.PriceID)
	if _, err := s.ledger.AllocateSubscriptionCredits(ctx, userID, amount, appKey, lo.ToPtr(inv.InvoiceID)); err != nil {
		return "", lo.ToPtr(userID), fmt.Errorf("failed to allocate subscription credits: %w", err)
	}

	// fail-soft: RecalculateCap logs its own failures
	s.subs.RecalculateCap(ctx, userID)
	return OutcomeProcessed, lo.ToPtr(userID), nil
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) (Outcome, *string, error) {
	log := logctx.FromCtx(ctx, s.log)

	change, err := parseSubscriptionChanged(event.Data)
	if err != nil {
		return "", nil, err
	}

	prevStatus := change.PreviousStatus
	if prevStatus == "" {
		if rec, err := s.subs.GetSubscription(ctx, change.SubscriptionID); err == nil {
			prevStatus = rec.Status
		}
	}

	userID := change.UserID
	if userID == "" {
		if rec, err := s.subs.GetSubscription(ctx, change.SubscriptionID); err == nil {
			userID = rec.UserID
		}
	}
	if userID == "" {
		log.Warnw("subscription_without_user", "event_id", event.ID, "stripe_subscription_id", change.SubscriptionID)
		return OutcomeIgnored, nil, nil
	}

	if err := s.subs.SyncSubscription(ctx, subscription.BuildRecord(
		userID, change.AppKey, change.SubscriptionID, change.PriceID, change.Status, change.CurrentPeriodEnd,
	)); err != nil {
		return "", lo.ToPtr(userID), err
	}

	s.subs.RecalculateCap(ctx, userID)

	// trial ended without converting: the trial credits are gone
	if prevStatus == types.SubscriptionStatusTrialing &&
		change.Status != types.SubscriptionStatusActive &&
		change.Status != types.SubscriptionStatusTrialing {
		if err := s.ledger.ExpireTrialCredits(ctx, userID, change.AppKey, "trial ended without conversion"); err != nil {
			return "", lo.ToPtr(userID), fmt.Errorf("failed to expire trial credits: %w", err)
		}
	}
	return OutcomeProcessed, lo.ToPtr(userID), nil
}

func (s *Service) handleSubscriptionStateChange(ctx context.Context, event stripe.Event) (Outcome, *string, error) {
	log := logctx.FromCtx(ctx, s.log)

	change, err := parseSubscriptionChanged(event.Data)
	if err != nil {
		return "", nil, err
	}

	userID := change.UserID
	if userID == "" {
		if rec, err := s.subs.GetSubscription(ctx, change.SubscriptionID); err == nil {
			userID = rec.UserID
		}
	}
	if userID == "" {
		log.Warnw("subscription_without_user", "event_id", event.ID, "stripe_subscription_id", change.SubscriptionID)
		return OutcomeIgnored, nil, nil
	}

	if err := s.subs.SyncSubscription(ctx, subscription.BuildRecord(
		userID, change.AppKey, change.SubscriptionID, change.PriceID, change.Status, change.CurrentPeriodEnd,
	)); err != nil {
		return "", lo.ToPtr(userID), err
	}
	s.subs.RecalculateCap(ctx, userID)
	return OutcomeProcessed, lo.ToPtr(userID), nil
}

func (s *Service) logIntake(ctx context.Context, event stripe.Event, userID *string, status models.WebhookEventLogStatus, handlerErr error) {
	if s.intake == nil {
		return
	}
	var traceID string
	if v, ok := ctx.Value("traceID").(string); ok {
		traceID = v
	}
	entry := &models.WebhookEventLog{
		EventID:   event.ID,
		EventType: string(event.Type),
		UserID:    userID,
		TraceID:   traceID,
		Data:      datatypes.JSON(event.Data.Raw),
		Status:    status,
	}
	if handlerErr != nil {
		resBytes, _ := json.Marshal(map[string]any{"error": handlerErr.Error()})
		res := datatypes.JSON(resBytes)
		entry.Result = &res
	}
	s.intake.Save(ctx, entry)
}
