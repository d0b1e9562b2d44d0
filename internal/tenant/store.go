package tenant

import (
	"context"
	"time"

	"github.com/avendale/tutorhive/internal/pagination"
)

// Store persists tenant data.
//
// The guarded methods (LinkPaymentOrder, ActivateSubscription,
// CancelSubscription, CancelActiveSubscription) are conditional writes:
// they apply only if the institution is still in the expected state, and
// report via their return value whether anything changed. Concurrent
// callers racing on the same institution are resolved by these guards,
// never by application-level locks.
type Store interface {
	CreateInstitution(ctx context.Context, inst *Institution) error
	GetInstitution(ctx context.Context, id string) (*Institution, error)
	DeleteInstitution(ctx context.Context, id string) error

	// ListInstitutions returns up to limit institutions ordered by creation
	// time descending, id breaking ties. A non-nil cursor resumes after that
	// position; callers fetch limit+1 to detect whether more pages remain.
	ListInstitutions(ctx context.Context, limit int, after *pagination.Cursor) ([]*Institution, error)

	UpsertAdminProfile(ctx context.Context, p *AdminProfile) error
	GetAdminProfile(ctx context.Context, institutionID string) (*AdminProfile, error)
	DeleteAdminProfile(ctx context.Context, id string) error

	CreateSubscription(ctx context.Context, sub *SubscriptionRecord) error
	GetSubscription(ctx context.Context, institutionID string) (*SubscriptionRecord, error)
	DeleteSubscription(ctx context.Context, id string) error

	// LinkPaymentOrder records orderID against the institution and inserts the
	// PaymentOrder row, in one atomic step. It fails with ErrOrderInFlight when
	// a different order is already linked and the institution has not reached a
	// terminal subscription state. Re-linking the same order id is a no-op.
	LinkPaymentOrder(ctx context.Context, institutionID, orderID string) error

	// SetOrderGatewayRef stores the provider-side reference for an order after
	// the checkout session has been created.
	SetOrderGatewayRef(ctx context.Context, orderID, gatewayRef string) error

	GetPaymentOrder(ctx context.Context, orderID string) (*PaymentOrder, error)

	// ActivateSubscription flips institution and subscription to active in one
	// atomic step, guarded on the institution still being inactive with orderID
	// linked. Returns false when the guard did not match (already active, or a
	// concurrent activation won).
	ActivateSubscription(ctx context.Context, institutionID, orderID string, startDate time.Time) (bool, error)

	// CancelSubscription is the gateway-declined counterpart of
	// ActivateSubscription: inactive -> cancelled, same guard. The linked
	// payment_order_id is retained for audit.
	CancelSubscription(ctx context.Context, institutionID, orderID string) (bool, error)

	// CancelActiveSubscription is the administrative cancel: active -> cancelled.
	CancelActiveSubscription(ctx context.Context, institutionID string) (bool, error)
}
