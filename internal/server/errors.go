package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/nodeboard/nodeboard/internal/billing/domain"
	"github.com/nodeboard/nodeboard/internal/identity"
	membershipdomain "github.com/nodeboard/nodeboard/internal/membership/domain"
	projectdomain "github.com/nodeboard/nodeboard/internal/project/domain"
	userdomain "github.com/nodeboard/nodeboard/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware converts the last gin error into the wire error
// envelope. Handlers report errors through AbortWithError and never write
// error bodies themselves.
func ErrorHandlingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(lastErr.Err))
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, string) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden),
		errors.Is(err, projectdomain.ErrForbidden),
		errors.Is(err, membershipdomain.ErrForbidden),
		errors.Is(err, membershipdomain.ErrCannotModifyOwner):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, membershipdomain.ErrInviteExists):
		return http.StatusConflict, err.Error()
	case isNotFoundError(err):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, projectdomain.ErrInvalidName),
		errors.Is(err, projectdomain.ErrInvalidProject),
		errors.Is(err, membershipdomain.ErrInvalidRole),
		errors.Is(err, membershipdomain.ErrInvalidAction),
		errors.Is(err, membershipdomain.ErrInvalidInvitee):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, projectdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, membershipdomain.ErrInviteNotFound),
		errors.Is(err, membershipdomain.ErrMembershipNotFound),
		errors.Is(err, billingdomain.ErrSubscriptionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
