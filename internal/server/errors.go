package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/quotaapp/searchd/internal/apikey/domain"
	quotadomain "github.com/quotaapp/searchd/internal/quota/domain"
	searchdomain "github.com/quotaapp/searchd/internal/search/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
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
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		}
	case errors.Is(err, quotadomain.ErrDailyQuotaExceeded):
		return http.StatusTooManyRequests, errorPayload{
			Code:    "DAILY_LIMIT_EXCEEDED",
			Message: "daily search limit reached",
		}
	case errors.Is(err, quotadomain.ErrMonthlyQuotaExceeded):
		return http.StatusTooManyRequests, errorPayload{
			Code:    "MONTHLY_LIMIT_EXCEEDED",
			Message: "monthly search limit reached",
		}
	case errors.Is(err, quotadomain.ErrContended):
		return http.StatusServiceUnavailable, errorPayload{
			Code:    "QUOTA_CONTENDED",
			Message: "another request for this user is in flight, retry shortly",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, apikeydomain.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Code:    "UNAUTHORIZED",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, quotadomain.ErrInvalidUser),
		errors.Is(err, searchdomain.ErrInvalidTerm),
		errors.Is(err, apikeydomain.ErrInvalidUser),
		errors.Is(err, apikeydomain.ErrInvalidName),
		errors.Is(err, apikeydomain.ErrInvalidKeyID):
		return http.StatusBadRequest, errorPayload{
			Code:    "INVALID_ARGUMENT",
			Message: "invalid request",
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Code:    "NOT_FOUND",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger. Quota rejections are
// expected traffic, not failures.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status == http.StatusTooManyRequests:
		return "quota", payload.Code
	case status >= http.StatusInternalServerError:
		return "internal", payload.Code
	default:
		return "request", payload.Code
	}
}
