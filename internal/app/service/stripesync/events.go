package stripesync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v78"

	"github.com/fatflowers/creditledger/pkg/types"
)

// Outcome classifies how an event was handled. Duplicate and ignored are
// success outcomes; the provider must not retry either.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Checkout session metadata keys set by the storefront when the session is
// created. They are the only link between a Stripe checkout and our user.
const (
	metaUserID       = "user_id"
	metaAppKey       = "app_key"
	metaPurchaseType = "purchase_type"
	metaCredits      = "credits"
	metaPackName     = "pack_name"
	metaPriceID      = "price_id"
)

const (
	purchaseTypeTopup = "topup"
	purchaseTypeTrial = "trial"
)

// trialPeriod is how long checkout-granted trial credits stay usable.
const trialPeriod = 7 * 24 * time.Hour

// checkoutCompleted is the decoded view of a checkout.session.completed
// event, reduced to the fields the ledger cares about.
type checkoutCompleted struct {
	SessionID    string
	UserID       string
	AppKey       string
	PurchaseType string
	Credits      int64
	PackName     string
}

func parseCheckoutCompleted(raw json.RawMessage, resolveCredits func(priceID string) (int64, string, bool)) (*checkoutCompleted, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}

	out := &checkoutCompleted{
		SessionID:    sess.ID,
		UserID:       sess.Metadata[metaUserID],
		AppKey:       sess.Metadata[metaAppKey],
		PurchaseType: sess.Metadata[metaPurchaseType],
		PackName:     sess.Metadata[metaPackName],
	}
	if v := sess.Metadata[metaCredits]; v != "" {
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			out.Credits = n
		}
	}
	// pack lookup by price id beats raw metadata credits: the catalog is
	// the source of truth for purchasable amounts
	if priceID := sess.Metadata[metaPriceID]; priceID != "" && resolveCredits != nil {
		if credits, name, ok := resolveCredits(priceID); ok {
			out.Credits = credits
			out.PackName = name
		}
	}
	return out, nil
}

// invoicePaid is the decoded view of an invoice.paid event.
type invoicePaid struct {
	InvoiceID      string
	BillingReason  string
	SubscriptionID string
	PriceID        string
	UserID         string
	AppKey         string
}

func parseInvoicePaid(raw json.RawMessage) (*invoicePaid, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse invoice: %w", err)
	}

	out := &invoicePaid{
		InvoiceID:     inv.ID,
		BillingReason: string(inv.BillingReason),
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	if inv.SubscriptionDetails != nil {
		out.UserID = inv.SubscriptionDetails.Metadata[metaUserID]
		out.AppKey = inv.SubscriptionDetails.Metadata[metaAppKey]
	}
	if inv.Lines != nil && len(inv.Lines.Data) > 0 {
		line := inv.Lines.Data[0]
		if line.Price != nil {
			out.PriceID = line.Price.ID
		}
		if out.UserID == "" {
			out.UserID = line.Metadata[metaUserID]
		}
		if out.AppKey == "" {
			out.AppKey = line.Metadata[metaAppKey]
		}
	}
	return out, nil
}

// subscriptionChanged is the decoded view of a customer.subscription.*
// event.
type subscriptionChanged struct {
	SubscriptionID   string
	UserID           string
	AppKey           string
	PriceID          string
	Status           types.SubscriptionStatus
	PreviousStatus   types.SubscriptionStatus // empty when not in the event
	CurrentPeriodEnd *time.Time
}

func parseSubscriptionChanged(data *stripe.EventData) (*subscriptionChanged, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse subscription: %w", err)
	}

	out := &subscriptionChanged{
		SubscriptionID: sub.ID,
		UserID:         sub.Metadata[metaUserID],
		AppKey:         sub.Metadata[metaAppKey],
		Status:         types.SubscriptionStatus(sub.Status),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0)
		out.CurrentPeriodEnd = &t
	}
	if prev, ok := data.PreviousAttributes["status"].(string); ok {
		out.PreviousStatus = types.SubscriptionStatus(prev)
	}
	return out, nil
}
