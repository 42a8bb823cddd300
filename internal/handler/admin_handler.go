package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atlastours/service-booking/internal/application"
	"github.com/atlastours/service-booking/pkg/auth"
	"github.com/atlastours/service-booking/pkg/middleware"
	"github.com/atlastours/service-booking/pkg/response"
)

// AdminHandler exposes platform-wide booking views for operators.
type AdminHandler struct {
	service *application.BookingService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(service *application.BookingService) *AdminHandler {
	return &AdminHandler{service: service}
}

// RegisterRoutes mounts admin routes on the given group.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin", middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/bookings/stats", h.BookingStats)
		admin.GET("/tours/:id/bookings", h.TourBookings)
	}
}

// ListBookings lists all bookings with pagination.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := paging(c)
	result, err := h.service.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, toBookingResponses(result.Items), result.Total, result.Page, result.Limit)
}

// BookingStats returns booking counts grouped by status.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// TourBookings lists bookings for one tour.
func (h *AdminHandler) TourBookings(c *gin.Context) {
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

	page, limit := paging(c)
	result, err := h.service.GetTourBookings(c.Request.Context(), tourID, actorID, role, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, toBookingResponses(result.Items), result.Total, result.Page, result.Limit)
}
