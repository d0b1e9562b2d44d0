// Package provisioning creates tenants: the multi-step onboarding flow that
// turns a signup form into an institution, a login account, an admin profile,
// and an inactive subscription.
//
// The flow is a saga, not a transaction. The login account lives in a
// separate identity provider, so the steps cannot share a database
// transaction; instead each step has a compensation and a failure rolls the
// completed steps back in reverse order. A signup either fully exists or
// (compensations permitting) not at all.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/avendale/tutorhive/internal/identity"
	"github.com/avendale/tutorhive/internal/idgen"
	"github.com/avendale/tutorhive/internal/metrics"
	"github.com/avendale/tutorhive/internal/tenant"
	"github.com/avendale/tutorhive/internal/traces"
)

// Errors
var (
	ErrAccountExists = errors.New("provisioning: email already registered")
	ErrInvalidPlan   = errors.New("provisioning: unknown plan")
)

// Notifier broadcasts tenant lifecycle events to connected dashboards.
type Notifier interface {
	Publish(event string, data any)
}

// CreateRequest is a validated signup.
type CreateRequest struct {
	Name         string
	ContactEmail string
	Phone        string
	Address      string
	AdminName    string
	AdminEmail   string
	Password     string
	PlanID       tenant.Plan
}

// CreateResult is everything a successful signup produced.
type CreateResult struct {
	Institution  *tenant.Institution        `json:"institution"`
	Admin        *tenant.AdminProfile       `json:"admin"`
	Subscription *tenant.SubscriptionRecord `json:"subscription"`
	Identity     *identity.Identity         `json:"identity"`
}

// Service runs the onboarding saga.
type Service struct {
	store    tenant.Store
	identity identity.Provider
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a provisioning service. notifier may be nil.
func NewService(store tenant.Store, provider identity.Provider, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, identity: provider, notifier: notifier, logger: logger}
}

// CreateTenant provisions a new tenant end to end.
//
// The saga is deliberately not idempotent: replaying a signup would mint
// fresh IDs, not resume the old attempt. Duplicate signups are instead
// rejected up front by the email check, and again by the identity provider
// inside the login-account step in case a second signup races past the
// pre-check; that failure rolls the institution row back like any other.
func (s *Service) CreateTenant(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	ctx, span := traces.StartSpan(ctx, "provisioning.CreateTenant", traces.PlanID(string(req.PlanID)))
	defer span.End()

	plan, ok := tenant.Plans[req.PlanID]
	if !ok {
		return nil, ErrInvalidPlan
	}

	taken, err := s.identity.EmailTaken(ctx, req.AdminEmail)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "email pre-check failed")
		return nil, fmt.Errorf("provisioning: email pre-check: %w", err)
	}
	if taken {
		metrics.ProvisioningTotal.WithLabelValues("already_exists").Inc()
		return nil, ErrAccountExists
	}

	now := time.Now()
	result := &CreateResult{}

	inst := &tenant.Institution{
		ID:                 idgen.WithPrefix("inst_"),
		Name:               req.Name,
		ContactEmail:       req.ContactEmail,
		Phone:              req.Phone,
		Address:            req.Address,
		SubscriptionStatus: tenant.SubscriptionInactive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	span.SetAttributes(traces.InstitutionID(inst.ID))

	steps := []Step{
		{
			Name: "create_institution",
			Run: func(ctx context.Context) error {
				if err := s.store.CreateInstitution(ctx, inst); err != nil {
					return err
				}
				result.Institution = inst
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.store.DeleteInstitution(ctx, inst.ID)
			},
		},
		{
			Name: "create_login_account",
			Run: func(ctx context.Context) error {
				id, err := s.identity.Create(ctx, identity.NewAccount{
					Email:    req.AdminEmail,
					Password: req.Password,
					Name:     req.AdminName,
				})
				if err != nil {
					if errors.Is(err, identity.ErrEmailTaken) {
						return ErrAccountExists
					}
					return err
				}
				result.Identity = id
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.identity.Delete(ctx, result.Identity.ID)
			},
		},
		{
			Name: "create_admin_profile",
			Run: func(ctx context.Context) error {
				prof := &tenant.AdminProfile{
					ID:            idgen.WithPrefix("adm_"),
					IdentityID:    result.Identity.ID,
					InstitutionID: inst.ID,
					Role:          tenant.RoleAdmin,
					Status:        "active",
					CreatedAt:     now,
				}
				if err := s.store.UpsertAdminProfile(ctx, prof); err != nil {
					return err
				}
				result.Admin = prof
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.store.DeleteAdminProfile(ctx, result.Admin.ID)
			},
		},
		{
			Name: "create_subscription",
			Run: func(ctx context.Context) error {
				sub := &tenant.SubscriptionRecord{
					ID:            idgen.WithPrefix("sub_"),
					InstitutionID: inst.ID,
					PlanID:        plan.ID,
					Amount:        plan.Amount,
					Currency:      plan.Currency,
					OrderID:       tenant.ProvisionalOrderID,
					Status:        tenant.SubscriptionInactive,
					CreatedAt:     now,
					UpdatedAt:     now,
				}
				if err := s.store.CreateSubscription(ctx, sub); err != nil {
					return err
				}
				result.Subscription = sub
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.store.DeleteSubscription(ctx, result.Subscription.ID)
			},
		},
	}

	if err := runSaga(ctx, s.logger, steps); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "saga failed")

		var partial *PartialFailureError
		if errors.As(err, &partial) {
			metrics.ProvisioningTotal.WithLabelValues("partial_failure").Inc()
		} else if errors.Is(err, ErrAccountExists) {
			metrics.ProvisioningTotal.WithLabelValues("already_exists").Inc()
		} else {
			metrics.ProvisioningTotal.WithLabelValues("rolled_back").Inc()
		}
		return nil, err
	}

	metrics.ProvisioningTotal.WithLabelValues("created").Inc()
	s.logger.Info("tenant provisioned",
		"institutionId", inst.ID, "plan", plan.ID, "adminEmail", result.Identity.Email)

	if s.notifier != nil {
		// Copy so hub subscribers never alias service state.
		s.notifier.Publish("institution_provisioned", *inst)
	}
	return result, nil
}
