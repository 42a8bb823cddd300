package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atlastours/service-booking/internal/application"
	"github.com/atlastours/service-booking/internal/domain/pricing"
	"github.com/atlastours/service-booking/pkg/auth"
	"github.com/atlastours/service-booking/pkg/middleware"
	"github.com/atlastours/service-booking/pkg/response"
)

// TourHandler exposes tour and schedule management over HTTP.
type TourHandler struct {
	service *application.TourService
}

// NewTourHandler creates a TourHandler.
func NewTourHandler(service *application.TourService) *TourHandler {
	return &TourHandler{service: service}
}

// RegisterRoutes mounts tour routes on the given group.
func (h *TourHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tours := rg.Group("/tours")
	{
		tours.GET("/:id", h.GetTour)
		tours.GET("/:id/availability", h.ListAvailability)

		provider := tours.Group("", middleware.RequireRole(auth.RoleProvider, auth.RoleAdmin))
		{
			provider.POST("", h.CreateTour)
			provider.GET("", h.MyTours)
			provider.PUT("/:id/pricing", h.UpdatePricing)
			provider.PUT("/:id/policy", h.UpdatePolicy)
			provider.POST("/:id/deactivate", h.DeactivateTour)
			provider.POST("/:id/slots", h.ScheduleSlot)
		}
	}
}

type createTourRequest struct {
	ProviderAccountRef string                `json:"provider_account_ref" binding:"required"`
	Name               string                `json:"name" binding:"required"`
	Description        string                `json:"description"`
	Currency           string                `json:"currency" binding:"required,len=3"`
	PricingConfig      pricing.Configuration `json:"pricing_config" binding:"required"`
	PolicyName         string                `json:"policy_name"`
	WindowHours        float64               `json:"window_hours"`
}

// CreateTour creates a tour for the authenticated provider.
func (h *TourHandler) CreateTour(c *gin.Context) {
	providerID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	var req createTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	t, err := h.service.CreateTour(c.Request.Context(), application.CreateTourInput{
		ProviderID:         providerID,
		ProviderAccountRef: req.ProviderAccountRef,
		Name:               req.Name,
		Description:        req.Description,
		Currency:           req.Currency,
		PricingConfig:      req.PricingConfig,
		PolicyName:         req.PolicyName,
		WindowHours:        req.WindowHours,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toTourResponse(t))
}

// GetTour retrieves one tour.
func (h *TourHandler) GetTour(c *gin.Context) {
	tourID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tour ID")
		return
	}

	t, err := h.service.GetTour(c.Request.Context(), tourID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toTourResponse(t))
}

// MyTours lists the authenticated provider's tours.
func (h *TourHandler) MyTours(c *gin.Context) {
	providerID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	tours, err := h.service.GetProviderTours(c.Request.Context(), providerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toTourResponses(tours))
}

// UpdatePricing replaces a tour's pricing configuration.
func (h *TourHandler) UpdatePricing(c *gin.Context) {
	tourID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tour ID")
		return
	}
	actorID, role, ok := actor(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	var cfg pricing.Configuration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	t, err := h.service.UpdatePricing(c.Request.Context(), tourID, actorID, role, cfg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toTourResponse(t))
}

type updatePolicyRequest struct {
	PolicyName  string  `json:"policy_name"`
	WindowHours float64 `json:"window_hours"`
}

// UpdatePolicy replaces a tour's cancellation policy.
func (h *TourHandler) UpdatePolicy(c *gin.Context) {
	tourID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tour ID")
		return
	}
	actorID, role, ok := actor(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	var req updatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	t, err := h.service.UpdatePolicy(c.Request.Context(), tourID, actorID, role, req.PolicyName, req.WindowHours)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toTourResponse(t))
}

// DeactivateTour closes a tour for new bookings.
func (h *TourHandler) DeactivateTour(c *gin.Context) {
	tourID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tour ID")
		return
	}
	actorID, role, ok := actor(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	t, err := h.service.DeactivateTour(c.Request.Context(), tourID, actorID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toTourResponse(t))
}

type scheduleSlotRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	Capacity  int       `json:"capacity" binding:"required,min=1"`
}

// ScheduleSlot adds a departure slot to a tour.
func (h *TourHandler) ScheduleSlot(c *gin.Context) {
	tourID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tour ID")
		return
	}
	actorID, role, ok := actor(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	var req scheduleSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	slot, err := h.service.ScheduleSlot(c.Request.Context(), actorID, role, application.ScheduleSlotInput{
		TourID:    tourID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Capacity:  req.Capacity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toSlotResponse(slot))
}

// ListAvailability lists a tour's upcoming slots.
func (h *TourHandler) ListAvailability(c *gin.Context) {
	tourID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tour ID")
		return
	}

	slots, err := h.service.ListAvailability(c.Request.Context(), tourID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toSlotResponses(slots))
}
