package server

import (
	"errors"
	"net/http"

	creditdomain "github.com/creditrail/creditgate/internal/credit/domain"
	"github.com/gin-gonic/gin"
)

type errorPayload struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

// ErrorHandlingMiddleware converts errors attached to the gin context into
// the JSON error envelope.
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
		c.Header("Content-Type", "application/json")
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

func mapError(err error) (int, errorPayload) {
	var (
		suspended    *creditdomain.AccountSuspendedError
		insufficient *creditdomain.InsufficientCreditsError
		conflict     *creditdomain.IdempotencyConflictError
		integrity    *creditdomain.DataIntegrityError
		verification *creditdomain.WriteVerificationError
		concurrency  *creditdomain.ConcurrencyError
	)

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, creditdomain.ErrInvalidIdentity),
		errors.Is(err, creditdomain.ErrInvalidAmount),
		errors.Is(err, creditdomain.ErrInvalidCurrency):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}

	case errors.Is(err, ErrNotFound), errors.Is(err, creditdomain.ErrAccountNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "account_not_found",
			Message: "account not found",
		}

	case errors.As(err, &suspended):
		return http.StatusForbidden, errorPayload{
			Type:    "account_suspended",
			Message: "account is suspended",
			Details: map[string]any{"reason": suspended.Reason},
		}

	case errors.Is(err, creditdomain.ErrAccountClosed):
		return http.StatusForbidden, errorPayload{
			Type:    "account_closed",
			Message: "account is closed",
		}

	case errors.As(err, &insufficient):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: "insufficient credits",
			Details: map[string]any{
				"balance":  insufficient.Balance,
				"required": insufficient.Required,
			},
		}

	case errors.As(err, &conflict):
		// Routine outcome: the effect already happened. Callers treat the
		// referenced row as their result.
		return http.StatusConflict, errorPayload{
			Type:    "idempotency_conflict",
			Message: "an identical request was already processed",
			Details: map[string]any{"existing_id": conflict.ExistingID.String()},
		}

	case errors.As(err, &concurrency):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "concurrency",
			Message: "account is busy, retry with the same idempotency key",
			Details: map[string]any{"resource": concurrency.Resource},
		}

	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}

	case errors.As(err, &integrity):
		return http.StatusInternalServerError, errorPayload{
			Type:    "data_integrity",
			Message: "data integrity violation",
		}

	case errors.As(err, &verification):
		return http.StatusInternalServerError, errorPayload{
			Type:    "write_verification",
			Message: "write verification failed",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
