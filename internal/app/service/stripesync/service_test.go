package stripesync

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/subscription"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/store/memstore"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/types"
)

type nopIntake struct{}

func (nopIntake) Save(context.Context, *models.WebhookEventLog) {}

func newTestSync(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	cfg := &config.Config{
		Plans: []*types.PlanItem{
			{AppKey: "scribe", Tier: "starter", StripePriceID: "price_scribe_starter", MonthlyCredits: 300, CreditCap: 900},
			{AppKey: "scribe", Tier: "pro", StripePriceID: "price_scribe_pro", MonthlyCredits: 1200, CreditCap: 3600},
		},
		TopupPacks: []*types.TopupPack{
			{Name: "small", StripePriceID: "price_pack_small", Credits: 500},
		},
	}
	log := zap.NewNop().Sugar()
	led := ledger.NewService(cfg, log, st)
	subs := subscription.NewService(cfg, log, st)
	return NewService(cfg, log, st, led, subs, nopIntake{}), st
}

func rawEvent(id, eventType string, payload any) stripe.Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func checkoutEvent(id string, metadata map[string]string) stripe.Event {
	return rawEvent(id, "checkout.session.completed", map[string]any{
		"id":       "cs_" + id,
		"object":   "checkout.session",
		"metadata": metadata,
	})
}

func invoiceEvent(id, billingReason, subID, priceID string, meta map[string]string) stripe.Event {
	payload := map[string]any{
		"id":             "in_" + id,
		"object":         "invoice",
		"billing_reason": billingReason,
		"lines": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": priceID}},
			},
		},
	}
	if subID != "" {
		payload["subscription"] = subID
	}
	if meta != nil {
		payload["subscription_details"] = map[string]any{"metadata": meta}
	}
	return rawEvent(id, "invoice.paid", payload)
}

func subscriptionEvent(id, eventType, subID, priceID, status string, meta map[string]string, prevStatus string) stripe.Event {
	evt := rawEvent(id, eventType, map[string]any{
		"id":       subID,
		"object":   "subscription",
		"status":   status,
		"metadata": meta,
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": priceID}},
			},
		},
	})
	if prevStatus != "" {
		evt.Data.PreviousAttributes = map[string]any{"status": prevStatus}
	}
	return evt
}

func TestHandleEvent_TopupCheckout(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	evt := checkoutEvent("evt_1", map[string]string{
		"user_id": "u1", "purchase_type": "topup", "price_id": "price_pack_small",
	})
	outcome, err := s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	acct, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), acct.TopupBalance)

	rows, _, err := st.ListTransactions(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, types.TransactionTypeTopupPurchase, rows[0].Type)
	assert.Equal(t, "cs_evt_1", *rows[0].ReferenceID)
}

func TestHandleEvent_ReplayIsExactlyOnce(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	evt := checkoutEvent("evt_1", map[string]string{
		"user_id": "u1", "purchase_type": "topup", "credits": "500",
	})

	outcome, err := s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	outcome, err = s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	acct, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), acct.TopupBalance, "replay must not allocate again")
	_, total, err := st.ListTransactions(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestHandleEvent_TrialCheckout(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	evt := checkoutEvent("evt_1", map[string]string{
		"user_id": "u1", "app_key": "scribe", "purchase_type": "trial", "credits": "100",
	})
	outcome, err := s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	acct, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.TrialBalance)
	require.NotNil(t, acct.TrialExpiresAt)
	assert.WithinDuration(t, time.Now().Add(trialPeriod), *acct.TrialExpiresAt, time.Minute)
}

func TestHandleEvent_CheckoutWithoutUserIsAcknowledged(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	evt := checkoutEvent("evt_1", map[string]string{"purchase_type": "topup", "credits": "500"})
	outcome, err := s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	// acknowledged events are still marked so replays short-circuit
	done, err := st.IsEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestHandleEvent_TrialSetupInvoiceSkipsAllocation(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubscription(ctx, &models.SubscriptionRecord{
		UserID: "u1", AppKey: "scribe", StripeSubscriptionID: "sub_1",
		StripePriceID: "price_scribe_pro", Status: types.SubscriptionStatusTrialing,
	}))

	evt := invoiceEvent("evt_1", "subscription_create", "sub_1", "price_scribe_pro", nil)
	outcome, err := s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	_, err = st.GetAccount(ctx, "u1")
	assert.Error(t, err, "setup invoice must not touch the ledger")
}

func TestHandleEvent_CycleInvoiceMergesThenAllocatesThenRecalculates(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubscription(ctx, &models.SubscriptionRecord{
		UserID: "u1", AppKey: "scribe", StripeSubscriptionID: "sub_1",
		StripePriceID: "price_scribe_pro", Status: types.SubscriptionStatusActive,
	}))
	// mid-trial balance waiting to convert; cap already reconciled when the
	// subscription was created
	future := time.Now().Add(time.Hour)
	_, err := st.UpdateAccount(ctx, "u1", func(a *models.CreditAccount) ([]*models.CreditTransaction, error) {
		a.TrialBalance = 100
		a.TrialExpiresAt = &future
		a.SubscriptionCap = 3600
		return nil, nil
	})
	require.NoError(t, err)

	evt := invoiceEvent("evt_1", "subscription_cycle", "sub_1", "price_scribe_pro", nil)
	outcome, err := s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	acct, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, acct.TrialBalance)
	// 100 merged + 1200 monthly grant for the pro plan
	assert.Equal(t, int64(1300), acct.SubscriptionBalance)
	// cap reconciled from the active pro subscription
	assert.Equal(t, int64(3600), acct.SubscriptionCap)
}

func TestHandleEvent_OtherInvoiceAllocatesWithFallbackAmount(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	evt := invoiceEvent("evt_1", "manual", "", "price_unknown", map[string]string{
		"user_id": "u1", "app_key": "ghostapp",
	})
	outcome, err := s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	acct, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.DefaultMonthlyCredits, acct.SubscriptionBalance)
}

func TestHandleEvent_SubscriptionUpdated_TrialEndedWithoutConversion(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	_, err := st.UpdateAccount(ctx, "u1", func(a *models.CreditAccount) ([]*models.CreditTransaction, error) {
		a.TrialBalance = 100
		a.TrialExpiresAt = &future
		return nil, nil
	})
	require.NoError(t, err)

	evt := subscriptionEvent("evt_1", "customer.subscription.updated", "sub_1", "price_scribe_pro",
		"canceled", map[string]string{"user_id": "u1", "app_key": "scribe"}, "trialing")
	outcome, err := s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	acct, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, acct.TrialBalance, "unconverted trial loses its credits")
	assert.Equal(t, types.DefaultSubscriptionCap, acct.SubscriptionCap)

	rec, err := st.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCanceled, rec.Status)
}

func TestHandleEvent_SubscriptionUpdated_TrialConvertsKeepsCredits(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	_, err := st.UpdateAccount(ctx, "u1", func(a *models.CreditAccount) ([]*models.CreditTransaction, error) {
		a.TrialBalance = 100
		a.TrialExpiresAt = &future
		return nil, nil
	})
	require.NoError(t, err)

	evt := subscriptionEvent("evt_1", "customer.subscription.updated", "sub_1", "price_scribe_pro",
		"active", map[string]string{"user_id": "u1", "app_key": "scribe"}, "trialing")
	_, err = s.HandleEvent(ctx, evt)
	require.NoError(t, err)

	acct, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.TrialBalance, "conversion leaves the merge to the cycle invoice")
	assert.Equal(t, int64(3600), acct.SubscriptionCap)
}

func TestHandleEvent_SubscriptionDeletedRecalculatesCap(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubscription(ctx, &models.SubscriptionRecord{
		UserID: "u1", AppKey: "scribe", StripeSubscriptionID: "sub_1",
		StripePriceID: "price_scribe_pro", Status: types.SubscriptionStatusActive,
	}))
	assert.Equal(t, int64(3600), s.subs.RecalculateCap(ctx, "u1"))

	evt := subscriptionEvent("evt_1", "customer.subscription.deleted", "sub_1", "price_scribe_pro",
		"canceled", map[string]string{"user_id": "u1", "app_key": "scribe"}, "")
	outcome, err := s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	acct, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.DefaultSubscriptionCap, acct.SubscriptionCap)
}

func TestHandleEvent_UnhandledTypeAcknowledged(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	evt := rawEvent("evt_1", "customer.created", map[string]any{"id": "cus_1"})
	outcome, err := s.HandleEvent(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	done, err := st.IsEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestHandleEvent_DistinctEventsBothApply(t *testing.T) {
	s, st := newTestSync(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		evt := checkoutEvent(fmt.Sprintf("evt_%d", i), map[string]string{
			"user_id": "u1", "purchase_type": "topup", "credits": "500",
		})
		_, err := s.HandleEvent(ctx, evt)
		require.NoError(t, err)
	}

	acct, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), acct.TopupBalance)
}
