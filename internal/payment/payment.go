// Package payment abstracts the payment gateway used for subscription
// checkout.
//
// The platform never sees card data: it creates a hosted checkout session,
// redirects the admin to it, and later asks the gateway what happened to the
// order. Gateway truth is authoritative for activation decisions.
package payment

import (
	"context"
	"errors"
)

// Errors
var (
	ErrUnavailable = errors.New("payment: gateway unavailable")
	ErrNoSession   = errors.New("payment: no checkout session for order")
)

// OrderState is the gateway's verdict on a payment order.
type OrderState string

const (
	StatePaid      OrderState = "paid"
	StatePending   OrderState = "pending"
	StateFailed    OrderState = "failed"
	StateCancelled OrderState = "cancelled"
)

// Declined reports whether the state is a terminal non-payment.
func (s OrderState) Declined() bool {
	return s == StateFailed || s == StateCancelled
}

// CheckoutParams describes the hosted checkout session to create.
type CheckoutParams struct {
	OrderID       string
	InstitutionID string
	PlanID        string
	PlanName      string
	Amount        int64 // minor units
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Checkout is a created hosted checkout session.
type Checkout struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Gateway is the payment provider surface.
//
// OrderStatus must be safe to call repeatedly for the same order; it is the
// read behind the idempotent activation flow.
type Gateway interface {
	CreateCheckout(ctx context.Context, p CheckoutParams) (*Checkout, error)
	OrderStatus(ctx context.Context, orderID string) (OrderState, error)
}
