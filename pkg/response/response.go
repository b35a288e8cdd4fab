package response

import (
	"errors"
	"net/http"

	"github.com/barterly/trade-engine/internal/types"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// Domain error codes for the trade lifecycle and boost engine
const (
	ErrCodeInvalidTarget         = "INVALID_TARGET"
	ErrCodeItemUnavailable       = "ITEM_UNAVAILABLE"
	ErrCodeAlreadyConfirmed      = "ALREADY_CONFIRMED"
	ErrCodeTradeAlreadyCompleted = "TRADE_ALREADY_COMPLETED"
	ErrCodeTradeNotCompleted     = "TRADE_NOT_COMPLETED"
	ErrCodeAlreadyRated          = "ALREADY_RATED"
	ErrCodeAlreadyPinned         = "ALREADY_PINNED"
	ErrCodeSelfPin               = "SELF_PIN"
	ErrCodeNotPinned             = "NOT_PINNED"
)

// Handle processes the error and returns the appropriate response.
// Domain errors map to stable codes so state-conflict errors can be surfaced
// to the caller verbatim; anything unrecognized becomes an internal error.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	switch {
	case errors.Is(err, types.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, types.ErrForbidden):
		Forbidden(c, err.Error())
	case errors.Is(err, types.ErrInvalidTarget):
		domainError(c, http.StatusBadRequest, ErrCodeInvalidTarget, err)
	case errors.Is(err, types.ErrItemUnavailable):
		domainError(c, http.StatusConflict, ErrCodeItemUnavailable, err)
	case errors.Is(err, types.ErrAlreadyConfirmed):
		domainError(c, http.StatusConflict, ErrCodeAlreadyConfirmed, err)
	case errors.Is(err, types.ErrTradeAlreadyCompleted):
		domainError(c, http.StatusConflict, ErrCodeTradeAlreadyCompleted, err)
	case errors.Is(err, types.ErrTradeNotCompleted):
		domainError(c, http.StatusConflict, ErrCodeTradeNotCompleted, err)
	case errors.Is(err, types.ErrAlreadyRated):
		domainError(c, http.StatusConflict, ErrCodeAlreadyRated, err)
	case errors.Is(err, types.ErrInvalidRating):
		domainError(c, http.StatusBadRequest, ErrCodeValidationFailed, err)
	case errors.Is(err, types.ErrAlreadyPinned):
		domainError(c, http.StatusConflict, ErrCodeAlreadyPinned, err)
	case errors.Is(err, types.ErrSelfPin):
		domainError(c, http.StatusBadRequest, ErrCodeSelfPin, err)
	case errors.Is(err, types.ErrNotPinned):
		domainError(c, http.StatusConflict, ErrCodeNotPinned, err)
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

func domainError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: err.Error(),
		},
	})
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeNotFound,
			Message: message,
		},
	})
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeBadRequest,
			Message: message,
		},
	})
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeUnauthorized,
			Message: message,
		},
	})
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeForbidden,
			Message: message,
		},
	})
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeInternalError,
			Message: message,
		},
	})
}
