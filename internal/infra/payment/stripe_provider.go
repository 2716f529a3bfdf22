package payment

import (
	"context"
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/adapter"
)

var _ adapter.CheckoutProvider = (*StripeProvider)(nil)

// StripeProvider implements the CheckoutProvider port on Stripe Checkout.
type StripeProvider struct {
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeProvider(secretKey, webhookSecret, successURL, cancelURL string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateSession(ctx context.Context, in adapter.CreateSessionInput) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
		ClientReferenceID: stripe.String(in.PurchaseID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(in.Course.Currency),
					UnitAmount: stripe.Int64(in.Course.Price),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.Course.Title),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	// Session metadata is what lets a webhook event be tied back to a
	// purchase when the session ID alone cannot.
	params.Metadata = map[string]string{
		"purchase_id": in.PurchaseID,
		"course_id":   in.Course.ID,
		"user_id":     in.UserID,
	}

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

func (p *StripeProvider) GetSession(ctx context.Context, sessionID string) (*model.SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get checkout session %s: %w", sessionID, err)
	}
	return sessionStatus(sess), nil
}

func sessionStatus(sess *stripe.CheckoutSession) *model.SessionStatus {
	st := &model.SessionStatus{
		SessionID:   sess.ID,
		Paid:        sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Complete:    sess.Status == stripe.CheckoutSessionStatusComplete,
		Expired:     sess.Status == stripe.CheckoutSessionStatusExpired,
		AmountTotal: sess.AmountTotal,
	}
	if sess.PaymentIntent != nil {
		st.RefID = sess.PaymentIntent.ID
	}
	return st
}

func (p *StripeProvider) VerifyAndParse(payload []byte, sigHeader string) (*model.CompletionEvent, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("stripe: webhook signature: %w", err)
	}

	var kind model.EventKind
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded", "checkout.session.async_payment_failed":
		kind = model.EventSessionCompleted
	case "checkout.session.expired":
		kind = model.EventSessionExpired
	default:
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("stripe: decode %s payload: %w", event.Type, err)
	}

	ev := &model.CompletionEvent{
		Kind:        kind,
		SessionID:   sess.ID,
		Paid:        sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: sess.AmountTotal,
		PurchaseID:  sess.ClientReferenceID,
		CourseID:    sess.Metadata["course_id"],
		UserID:      sess.Metadata["user_id"],
	}
	if sess.Metadata["purchase_id"] != "" {
		ev.PurchaseID = sess.Metadata["purchase_id"]
	}
	if sess.PaymentIntent != nil {
		ev.RefID = sess.PaymentIntent.ID
	}
	return ev, nil
}
