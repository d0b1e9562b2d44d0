// Package tenant provides multi-tenancy for the Tutorhive platform.
//
// A tenant is one Institution plus everything scoped to it: its admin
// profile, its subscription record, and the payment orders linked to it.
package tenant

import (
	"errors"
	"time"
)

// Errors
var (
	ErrInstitutionNotFound  = errors.New("tenant: institution not found")
	ErrAdminNotFound        = errors.New("tenant: admin profile not found")
	ErrSubscriptionNotFound = errors.New("tenant: subscription not found")
	ErrSubscriptionExists   = errors.New("tenant: institution already has a subscription")
	ErrOrderNotFound        = errors.New("tenant: payment order not found")
	ErrDuplicateOrder       = errors.New("tenant: order id already linked to another institution")
	ErrOrderInFlight        = errors.New("tenant: another payment order is already in flight")
)

// SubscriptionStatus represents an institution's subscription lifecycle state.
type SubscriptionStatus string

const (
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Terminal reports whether the status ends an in-flight payment order.
// While an institution is inactive its linked order is still being paid for,
// so a different order must not displace it.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionActive || s == SubscriptionCancelled || s == SubscriptionExpired
}

// ProvisionalOrderID is the placeholder recorded on a freshly provisioned
// subscription before any real checkout has started.
const ProvisionalOrderID = "PENDING_CHECKOUT"

// AdminRole identifies the role of an admin profile within an institution.
type AdminRole string

const RoleAdmin AdminRole = "admin"

// Institution represents one school or tutoring organisation on the platform.
type Institution struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	ContactEmail       string             `json:"contactEmail"`
	Phone              string             `json:"phone,omitempty"`
	Address            string             `json:"address,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	PaymentOrderID     string             `json:"paymentOrderId,omitempty"` // empty until a checkout begins
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// AdminProfile links a login identity to exactly one institution.
type AdminProfile struct {
	ID            string    `json:"id"`
	IdentityID    string    `json:"identityId"`
	InstitutionID string    `json:"institutionId"`
	Role          AdminRole `json:"role"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SubscriptionRecord is an institution's subscription to a plan.
// Its status mirrors Institution.SubscriptionStatus after every transition.
type SubscriptionRecord struct {
	ID            string             `json:"id"`
	InstitutionID string             `json:"institutionId"`
	PlanID        Plan               `json:"planId"`
	Amount        int64              `json:"amount"` // minor units
	Currency      string             `json:"currency"`
	OrderID       string             `json:"orderId"`
	Status        SubscriptionStatus `json:"status"`
	StartDate     *time.Time         `json:"startDate,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// PaymentOrder maps a gateway order id back to the institution that started
// the checkout. Written before the checkout begins so an activation callback
// carrying only an order id can always resolve its institution.
type PaymentOrder struct {
	OrderID       string    `json:"orderId"`
	InstitutionID string    `json:"institutionId"`
	GatewayRef    string    `json:"gatewayRef,omitempty"` // provider-side session/intent reference
	CreatedAt     time.Time `json:"createdAt"`
}
