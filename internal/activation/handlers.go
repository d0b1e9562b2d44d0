package activation

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avendale/tutorhive/internal/pagination"
	"github.com/avendale/tutorhive/internal/payment"
	"github.com/avendale/tutorhive/internal/retry"
	"github.com/avendale/tutorhive/internal/tenant"
	"github.com/avendale/tutorhive/internal/validation"
)

// Handler provides HTTP endpoints for checkout and activation.
type Handler struct {
	service *Service
	store   tenant.Store
}

// NewHandler creates a new activation handler.
func NewHandler(service *Service, store tenant.Store) *Handler {
	return &Handler{service: service, store: store}
}

// RegisterRoutes sets up checkout and activation routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/checkout", h.StartCheckout)
	r.POST("/activate", h.Activate)
	r.GET("/institutions/:id", h.GetInstitution)
}

// RegisterAdminRoutes sets up routes that require the admin secret.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/institutions", h.ListInstitutions)
	r.POST("/institutions/:id/cancel", h.CancelSubscription)
}

// StartCheckoutRequest starts a checkout for a provisioned institution.
type StartCheckoutRequest struct {
	InstitutionID string `json:"institutionId"`
}

// StartCheckout handles POST /v1/checkout
func (h *Handler) StartCheckout(c *gin.Context) {
	var req StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.InstitutionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "institutionId is required",
		})
		return
	}

	session, err := h.service.StartCheckout(c.Request.Context(), req.InstitutionID)
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrInstitutionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Institution not found",
			})
		case errors.Is(err, ErrNotProvisioned):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "not_provisioned",
				"message": "Institution has no subscription to pay for",
			})
		case errors.Is(err, ErrAlreadyActive):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "already_active",
				"message": "Subscription is already active",
			})
		case errors.Is(err, ErrSubscriptionClosed):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "subscription_closed",
				"message": "Subscription was cancelled and cannot be paid for; contact support",
			})
		case errors.Is(err, tenant.ErrOrderInFlight):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "order_in_flight",
				"message": "A payment for this institution is already in progress",
			})
		case errors.Is(err, payment.ErrUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "gateway_unavailable",
				"message": "Payment provider is unavailable, try again shortly",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "checkout_failed",
				"message": "Could not start checkout",
			})
		}
		return
	}

	c.JSON(http.StatusOK, session)
}

// ActivateRequest carries the order to reconcile. institutionId is an
// optional hint; the stored order link decides.
type ActivateRequest struct {
	OrderID       string `json:"orderId"`
	InstitutionID string `json:"institutionId"`
}

// Activate handles POST /v1/activate
//
// Transient gateway failures are retried with backoff before giving up with
// 502; the caller can safely retry the whole request as well.
func (h *Handler) Activate(c *gin.Context) {
	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if !validation.IsValidOrderID(req.OrderID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "orderId is missing or malformed",
		})
		return
	}

	var result *Result
	err := retry.Do(c.Request.Context(), 3, 200*time.Millisecond, func() error {
		var aerr error
		result, aerr = h.service.Activate(c.Request.Context(), req.OrderID, req.InstitutionID)
		if aerr != nil && !errors.Is(aerr, payment.ErrUnavailable) {
			return retry.Permanent(aerr)
		}
		return aerr
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "order_not_found",
				"message": "No institution is linked to this order",
			})
		case errors.Is(err, payment.ErrUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "gateway_unavailable",
				"message": "Payment provider is unavailable, try again shortly",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "activation_failed",
				"message": "Could not reconcile the payment",
			})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetInstitution handles GET /v1/institutions/:id
func (h *Handler) GetInstitution(c *gin.Context) {
	id := c.Param("id")

	inst, err := h.store.GetInstitution(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, tenant.ErrInstitutionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Institution not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Could not load institution",
		})
		return
	}

	resp := gin.H{"institution": inst}
	if sub, err := h.store.GetSubscription(c.Request.Context(), id); err == nil {
		resp["subscription"] = sub
	}
	c.JSON(http.StatusOK, resp)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListInstitutions handles GET /v1/institutions (admin only) with cursor
// pagination.
func (h *Handler) ListInstitutions(c *gin.Context) {
	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = min(n, maxPageSize)
	}

	after, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor is not one this server issued",
		})
		return
	}

	items, err := h.store.ListInstitutions(c.Request.Context(), limit+1, after)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Could not list institutions",
		})
		return
	}

	page, next, more := pagination.Page(items, limit, func(inst *tenant.Institution) (time.Time, string) {
		return inst.CreatedAt, inst.ID
	})
	c.JSON(http.StatusOK, gin.H{
		"institutions": page,
		"nextCursor":   next,
		"hasMore":      more,
	})
}

// CancelSubscription handles POST /v1/institutions/:id/cancel (admin only)
func (h *Handler) CancelSubscription(c *gin.Context) {
	id := c.Param("id")

	inst, err := h.service.CancelActive(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, tenant.ErrInstitutionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Institution not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Could not cancel subscription",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"institution": inst})
}
