package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atlastours/service-booking/pkg/domain"
)

// Envelope is the standard wrapper for API payloads.
type Envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// PaginatedEnvelope wraps list responses with pagination metadata.
type PaginatedEnvelope struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// Success writes a 200 with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Data: data})
}

// Created writes a 201 with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Data: data})
}

// BadRequest writes a 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Error: message})
}

// Paginated writes a 200 with a page of items.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, PaginatedEnvelope{Data: items, Total: total, Page: page, Limit: limit})
}

// Error maps a domain error to its HTTP status code. Unclassified errors
// become opaque 500s so internals never leak to clients.
func Error(c *gin.Context, err error) {
	status, message := classify(err)
	c.JSON(status, Envelope{Error: message})
}

// ErrorWithData is Error for operations that committed state before failing,
// so the caller gets the persisted resource along with the error.
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	status, message := classify(err)
	c.JSON(status, Envelope{Data: data, Error: message})
}

func classify(err error) (int, string) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest, err.Error()
	case domain.KindNotFound:
		return http.StatusNotFound, err.Error()
	case domain.KindConflict:
		return http.StatusConflict, err.Error()
	case domain.KindInvalidState:
		return http.StatusUnprocessableEntity, err.Error()
	case domain.KindForbidden:
		return http.StatusForbidden, err.Error()
	case domain.KindCapacity:
		return http.StatusConflict, err.Error()
	case domain.KindPayment:
		return http.StatusPaymentRequired, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
