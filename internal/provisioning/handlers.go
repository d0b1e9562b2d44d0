package provisioning

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avendale/tutorhive/internal/logging"
	"github.com/avendale/tutorhive/internal/tenant"
	"github.com/avendale/tutorhive/internal/validation"
)

// Handler provides HTTP endpoints for tenant onboarding.
type Handler struct {
	service *Service
}

// NewHandler creates a new provisioning handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up onboarding routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/institutions", h.CreateInstitution)
	r.GET("/plans", h.ListPlans)
}

// CreateInstitutionRequest is the signup payload.
type CreateInstitutionRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contactEmail"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	AdminName    string `json:"adminName"`
	AdminEmail   string `json:"adminEmail"`
	Password     string `json:"password"`
	PlanID       string `json:"planId"`
}

// CreateInstitution handles POST /v1/institutions
func (h *Handler) CreateInstitution(c *gin.Context) {
	var req CreateInstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.Required("name", req.Name),
		validation.Required("contactEmail", req.ContactEmail),
		validation.ValidEmail("contactEmail", req.ContactEmail),
		validation.Required("adminName", req.AdminName),
		validation.Required("adminEmail", req.AdminEmail),
		validation.ValidEmail("adminEmail", req.AdminEmail),
		validation.Required("password", req.Password),
		validation.MinLength("password", req.Password, validation.MinPasswordLength),
		validation.Required("planId", req.PlanID),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	planID := tenant.Plan(req.PlanID)
	if !tenant.ValidPlan(planID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "planId: unknown plan",
		})
		return
	}

	result, err := h.service.CreateTenant(c.Request.Context(), CreateRequest{
		Name:         validation.SanitizeString(req.Name, validation.MaxNameLength),
		ContactEmail: validation.NormalizeEmail(req.ContactEmail),
		Phone:        validation.SanitizeString(req.Phone, 32),
		Address:      validation.SanitizeString(req.Address, 500),
		AdminName:    validation.SanitizeString(req.AdminName, validation.MaxNameLength),
		AdminEmail:   validation.NormalizeEmail(req.AdminEmail),
		Password:     req.Password,
		PlanID:       planID,
	})
	if err != nil {
		h.writeCreateError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) writeCreateError(c *gin.Context, err error) {
	logger := logging.L(c.Request.Context())

	switch {
	case errors.Is(err, ErrAccountExists):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "already_exists",
			"message": "An account with this email already exists. Log in instead of signing up again.",
		})
	case errors.Is(err, ErrInvalidPlan):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "planId: unknown plan",
		})
	default:
		var partial *PartialFailureError
		if errors.As(err, &partial) {
			logger.Error("provisioning left orphaned records",
				"failedStep", partial.FailedStep, "orphans", len(partial.Orphans))
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "provisioning_failed",
			"message": "Could not complete signup. No charge was made; please try again.",
		})
	}
}

// ListPlans handles GET /v1/plans
func (h *Handler) ListPlans(c *gin.Context) {
	plans := make([]tenant.PlanConfig, 0, len(tenant.Plans))
	for _, p := range []tenant.Plan{tenant.PlanStarter, tenant.PlanStandard, tenant.PlanPremium} {
		plans = append(plans, tenant.Plans[p])
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}
