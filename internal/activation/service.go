// Package activation manages the payment half of onboarding: starting a
// hosted checkout for a provisioned institution and turning gateway verdicts
// into subscription state.
//
// Activation is idempotent where provisioning is not. The payment success
// page can be reloaded, the gateway can redeliver, an admin can double-click;
// every path funnels into one guarded state machine:
//
//	inactive ──paid──────▶ active
//	inactive ──declined──▶ cancelled
//
// active and cancelled are terminal. A replay finds the guard unmatched,
// writes nothing, and reports the current state.
package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/avendale/tutorhive/internal/idgen"
	"github.com/avendale/tutorhive/internal/metrics"
	"github.com/avendale/tutorhive/internal/payment"
	"github.com/avendale/tutorhive/internal/tenant"
	"github.com/avendale/tutorhive/internal/traces"
)

// Errors
var (
	ErrOrderNotFound      = errors.New("activation: unknown payment order")
	ErrAlreadyActive      = errors.New("activation: subscription already active")
	ErrNotProvisioned     = errors.New("activation: institution has no subscription")
	ErrSubscriptionClosed = errors.New("activation: subscription is closed")
)

// Notifier broadcasts subscription lifecycle events.
type Notifier interface {
	Publish(event string, data any)
}

// Service drives checkout and activation.
type Service struct {
	store      tenant.Store
	gateway    payment.Gateway
	notifier   Notifier
	logger     *slog.Logger
	successURL string
	cancelURL  string
}

// NewService creates an activation service. notifier may be nil.
func NewService(store tenant.Store, gateway payment.Gateway, notifier Notifier, logger *slog.Logger, successURL, cancelURL string) *Service {
	return &Service{
		store:      store,
		gateway:    gateway,
		notifier:   notifier,
		logger:     logger,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CheckoutSession is the response to a started checkout.
type CheckoutSession struct {
	OrderID   string `json:"orderId"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// StartCheckout links a payment order to the institution and creates a
// hosted checkout session for its subscription plan.
//
// The order link is written before the gateway is called, so a later
// callback carrying only the order id can always resolve the institution.
// While a previous order is still in flight it is reused rather than
// displaced; a fresh session is created for the same order id.
func (s *Service) StartCheckout(ctx context.Context, institutionID string) (*CheckoutSession, error) {
	ctx, span := traces.StartSpan(ctx, "activation.StartCheckout", traces.InstitutionID(institutionID))
	defer span.End()

	inst, err := s.store.GetInstitution(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	switch {
	case inst.SubscriptionStatus == tenant.SubscriptionActive:
		return nil, ErrAlreadyActive
	case inst.SubscriptionStatus.Terminal():
		// Cancelled or expired: the inactive→active guard can never match
		// again, so a new payment would be taken and never honoured.
		// Refuse before any money moves.
		return nil, ErrSubscriptionClosed
	}

	sub, err := s.store.GetSubscription(ctx, institutionID)
	if err != nil {
		if errors.Is(err, tenant.ErrSubscriptionNotFound) {
			return nil, ErrNotProvisioned
		}
		return nil, err
	}

	// The institution is inactive here, so a linked order is still in
	// flight: reuse it rather than displace it.
	orderID := idgen.NewOrderID()
	if inst.PaymentOrderID != "" {
		orderID = inst.PaymentOrderID
	}
	span.SetAttributes(traces.OrderID(orderID))

	if err := s.store.LinkPaymentOrder(ctx, institutionID, orderID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	plan := tenant.Plans[sub.PlanID]
	co, err := s.gateway.CreateCheckout(ctx, payment.CheckoutParams{
		OrderID:       orderID,
		InstitutionID: institutionID,
		PlanID:        string(plan.ID),
		PlanName:      plan.Name,
		Amount:        sub.Amount,
		Currency:      sub.Currency,
		CustomerEmail: inst.ContactEmail,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create checkout failed")
		return nil, fmt.Errorf("activation: create checkout: %w", err)
	}

	// Best effort: the order link is already authoritative, the session
	// reference is diagnostic only.
	if err := s.store.SetOrderGatewayRef(ctx, orderID, co.SessionID); err != nil {
		s.logger.Warn("could not store gateway session reference",
			"orderId", orderID, "error", err)
	}

	metrics.CheckoutsTotal.WithLabelValues(string(plan.ID)).Inc()
	s.logger.Info("checkout started",
		"institutionId", institutionID, "orderId", orderID, "plan", plan.ID)

	return &CheckoutSession{OrderID: orderID, SessionID: co.SessionID, URL: co.URL}, nil
}

// Result describes the outcome of an activation attempt.
type Result struct {
	InstitutionID      string                    `json:"institutionId"`
	OrderID            string                    `json:"orderId"`
	OrderState         payment.OrderState        `json:"orderState"`
	SubscriptionStatus tenant.SubscriptionStatus `json:"subscriptionStatus"`
	Transitioned       bool                      `json:"transitioned"`
}

// Activate resolves an order to its institution, asks the gateway what
// happened to the payment, and applies the guarded transition.
//
// institutionHint is advisory: when present it is checked against the stored
// order link and a mismatch is logged, but the link is always the truth.
// Safe to call any number of times for the same order.
func (s *Service) Activate(ctx context.Context, orderID, institutionHint string) (*Result, error) {
	ctx, span := traces.StartSpan(ctx, "activation.Activate", traces.OrderID(orderID))
	defer span.End()

	order, err := s.store.GetPaymentOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, tenant.ErrOrderNotFound) {
			metrics.ActivationsTotal.WithLabelValues("order_not_found").Inc()
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if institutionHint != "" && institutionHint != order.InstitutionID {
		s.logger.Warn("activation hint does not match order link; trusting the link",
			"orderId", orderID, "hint", institutionHint, "linked", order.InstitutionID)
	}
	institutionID := order.InstitutionID
	span.SetAttributes(traces.InstitutionID(institutionID))

	state, err := s.gateway.OrderStatus(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway status query failed")
		metrics.ActivationsTotal.WithLabelValues("gateway_error").Inc()
		return nil, fmt.Errorf("activation: order status: %w", err)
	}

	result := &Result{InstitutionID: institutionID, OrderID: orderID, OrderState: state}

	switch {
	case state == payment.StatePaid:
		updated, err := s.store.ActivateSubscription(ctx, institutionID, orderID, time.Now())
		if err != nil {
			return nil, err
		}
		result.Transitioned = updated
		if updated {
			metrics.ActivationsTotal.WithLabelValues("active").Inc()
			s.logger.Info("subscription activated",
				"institutionId", institutionID, "orderId", orderID)
		}

	case state.Declined():
		updated, err := s.store.CancelSubscription(ctx, institutionID, orderID)
		if err != nil {
			return nil, err
		}
		result.Transitioned = updated
		if updated {
			metrics.ActivationsTotal.WithLabelValues("cancelled").Inc()
			s.logger.Info("subscription cancelled after declined payment",
				"institutionId", institutionID, "orderId", orderID, "orderState", state)
		}

	default:
		// pending: not a verdict yet, write nothing.
		metrics.ActivationsTotal.WithLabelValues("pending").Inc()
	}

	// Report the state the store actually holds, whether this call
	// transitioned it or a previous one did.
	inst, err := s.store.GetInstitution(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	result.SubscriptionStatus = inst.SubscriptionStatus

	if result.Transitioned && s.notifier != nil {
		event := "subscription_activated"
		if inst.SubscriptionStatus == tenant.SubscriptionCancelled {
			event = "subscription_cancelled"
		}
		s.notifier.Publish(event, *inst)
	}
	return result, nil
}

// CancelActive is the administrative cancel: active → cancelled.
// Returns the institution's state after the call.
func (s *Service) CancelActive(ctx context.Context, institutionID string) (*tenant.Institution, error) {
	ctx, span := traces.StartSpan(ctx, "activation.CancelActive", traces.InstitutionID(institutionID))
	defer span.End()

	updated, err := s.store.CancelActiveSubscription(ctx, institutionID)
	if err != nil {
		return nil, err
	}

	inst, err := s.store.GetInstitution(ctx, institutionID)
	if err != nil {
		return nil, err
	}

	if updated {
		s.logger.Info("subscription cancelled by admin", "institutionId", institutionID)
		if s.notifier != nil {
			s.notifier.Publish("subscription_cancelled", *inst)
		}
	}
	return inst, nil
}
