package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/avendale/tutorhive/internal/metrics"
)

// StripeGateway implements Gateway on Stripe hosted checkout.
//
// The order id travels as payment intent metadata, so OrderStatus can find
// the intent by searching metadata rather than persisting Stripe ids.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a Stripe-backed gateway with its own API client.
func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, p CheckoutParams) (*Checkout, error) {
	start := time.Now()
	defer func() {
		metrics.GatewayRequestDuration.WithLabelValues("create_checkout").Observe(time.Since(start).Seconds())
	}()

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(p.OrderID),
		CustomerEmail:     stripe.String(p.CustomerEmail),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(p.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.PlanName),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"order_id":       p.OrderID,
				"institution_id": p.InstitutionID,
				"plan_id":        p.PlanID,
			},
		},
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeErr("create checkout session", err)
	}
	return &Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) OrderStatus(ctx context.Context, orderID string) (OrderState, error) {
	start := time.Now()
	defer func() {
		metrics.GatewayRequestDuration.WithLabelValues("order_status").Observe(time.Since(start).Seconds())
	}()

	params := &stripe.PaymentIntentSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("metadata['order_id']:'%s'", orderID),
			Context: ctx,
		},
	}

	iter := g.api.PaymentIntents.Search(params)
	for iter.Next() {
		return stateFromIntent(iter.PaymentIntent()), nil
	}
	if err := iter.Err(); err != nil {
		return "", wrapStripeErr("search payment intents", err)
	}

	// Session created but the admin has not reached payment yet.
	return StatePending, nil
}

// stateFromIntent maps a Stripe payment intent status onto an OrderState.
// A requires_payment_method intent with a recorded payment error means the
// attempted charge was declined.
func stateFromIntent(pi *stripe.PaymentIntent) OrderState {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatePaid
	case stripe.PaymentIntentStatusCanceled:
		return StateCancelled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return StateFailed
		}
		return StatePending
	default:
		// processing, requires_confirmation, requires_action, requires_capture
		return StatePending
	}
}

// wrapStripeErr classifies a Stripe client error. Network failures and 5xx
// responses are retryable ErrUnavailable; everything else surfaces as-is.
func wrapStripeErr(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429 {
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
		}
		return fmt.Errorf("payment: %s: %w", op, err)
	}
	// Non-API errors from the client are transport failures.
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

var _ Gateway = (*StripeGateway)(nil)
