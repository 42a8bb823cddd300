package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atlastours/service-booking/internal/application"
	"github.com/atlastours/service-booking/pkg/auth"
	"github.com/atlastours/service-booking/pkg/middleware"
	"github.com/atlastours/service-booking/pkg/response"
)

// BookingHandler exposes the booking lifecycle over HTTP.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes mounts booking routes on the given group. All routes
// require authentication.
func (h *BookingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	bookings := rg.Group("/bookings")
	{
		bookings.POST("/quote", h.QuotePrice)
		bookings.POST("", middleware.RequireRole(auth.RoleCustomer), h.CreateBooking)
		bookings.GET("/me", middleware.RequireRole(auth.RoleCustomer), h.MyBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/complete", middleware.RequireRole(auth.RoleProvider, auth.RoleAdmin), h.CompleteBooking)
		bookings.POST("/:id/no-show", middleware.RequireRole(auth.RoleProvider, auth.RoleAdmin), h.MarkNoShow)
	}
}

type quoteRequest struct {
	TourID            uuid.UUID      `json:"tour_id" binding:"required"`
	TotalParticipants int            `json:"total_participants" binding:"required,min=1"`
	CategoryCounts    map[string]int `json:"category_counts"`
	AddonIDs          []string       `json:"addon_ids"`
}

// QuotePrice prices a prospective booking without creating it.
func (h *BookingHandler) QuotePrice(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	breakdown, err := h.service.QuotePrice(c.Request.Context(), application.QuoteInput{
		TourID:            req.TourID,
		TotalParticipants: req.TotalParticipants,
		CategoryCounts:    req.CategoryCounts,
		AddonIDs:          req.AddonIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, breakdown)
}

type createBookingRequest struct {
	TourID            uuid.UUID      `json:"tour_id" binding:"required"`
	SlotID            uuid.UUID      `json:"slot_id" binding:"required"`
	TotalParticipants int            `json:"total_participants" binding:"required,min=1"`
	CategoryCounts    map[string]int `json:"category_counts"`
	AddonIDs          []string       `json:"addon_ids"`
	CustomerRef       string         `json:"customer_ref"`
	PaymentMethodRef  string         `json:"payment_method_ref"`
}

// CreateBooking creates a booking for the authenticated customer.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	customerID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	bk, err := h.service.CreateBooking(c.Request.Context(), application.CreateBookingInput{
		TourID:            req.TourID,
		SlotID:            req.SlotID,
		CustomerID:        customerID,
		TotalParticipants: req.TotalParticipants,
		CategoryCounts:    req.CategoryCounts,
		AddonIDs:          req.AddonIDs,
		CustomerRef:       req.CustomerRef,
		PaymentMethodRef:  req.PaymentMethodRef,
	})
	if err != nil {
		// A failed charge still created the booking; return it with the error.
		if bk != nil {
			response.ErrorWithData(c, err, toBookingResponse(bk))
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, toBookingResponse(bk))
}

// GetBooking retrieves one booking, scoped to the caller.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}
	actorID, role, ok := actor(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	bk, err := h.service.GetBooking(c.Request.Context(), bookingID, actorID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toBookingResponse(bk))
}

// MyBookings lists the authenticated customer's bookings.
func (h *BookingHandler) MyBookings(c *gin.Context) {
	customerID, ok := middleware.GetUserID(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}
	page, limit := paging(c)

	result, err := h.service.GetCustomerBookings(c.Request.Context(), customerID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, toBookingResponses(result.Items), result.Total, result.Page, result.Limit)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelBooking cancels a booking, evaluating the cancellation policy and
// routing any refund. The call is idempotent.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}
	actorID, role, ok := actor(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	bk, err := h.service.CancelBooking(c.Request.Context(), bookingID, actorID, role, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toBookingResponse(bk))
}

// CompleteBooking marks a booking completed after the tour ran.
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}
	actorID, role, ok := actor(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	bk, err := h.service.CompleteBooking(c.Request.Context(), bookingID, actorID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toBookingResponse(bk))
}

// MarkNoShow marks a booking no_show once its slot has started.
func (h *BookingHandler) MarkNoShow(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}
	actorID, role, ok := actor(c)
	if !ok {
		response.BadRequest(c, "missing authentication context")
		return
	}

	bk, err := h.service.MarkNoShow(c.Request.Context(), bookingID, actorID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toBookingResponse(bk))
}

func actor(c *gin.Context) (uuid.UUID, string, bool) {
	id, ok := middleware.GetUserID(c)
	if !ok {
		return uuid.Nil, "", false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		return uuid.Nil, "", false
	}
	return id, role, true
}

func paging(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}
