package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/menuvia/menuvia/internal/auth/domain"
	"github.com/menuvia/menuvia/internal/gateway"
	paymentdomain "github.com/menuvia/menuvia/internal/payment/domain"
	plandomain "github.com/menuvia/menuvia/internal/plan/domain"
	restaurantdomain "github.com/menuvia/menuvia/internal/restaurant/domain"
	subscriptiondomain "github.com/menuvia/menuvia/internal/subscription/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_error",
			Message: gwErr.Description,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked),
		errors.Is(err, subscriptiondomain.ErrInvalidPaymentSignature),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, subscriptiondomain.ErrInvalidBillingCycle):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "invalid request",
		}
	case errors.Is(err, subscriptiondomain.ErrAlreadyCancelled):
		return http.StatusBadRequest, errorPayload{
			Type:    "already_cancelled",
			Message: "subscription is already cancelled",
		}
	case errors.Is(err, subscriptiondomain.ErrPaymentNotSuccessful):
		return http.StatusBadRequest, errorPayload{
			Type:    "payment_not_successful",
			Message: "payment was not captured",
		}
	case errors.Is(err, subscriptiondomain.ErrGatewayNotConfigured):
		return http.StatusInternalServerError, errorPayload{
			Type:    "configuration_error",
			Message: "payment gateway is not configured",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, plandomain.ErrPlanNotFound),
		errors.Is(err, restaurantdomain.ErrRestaurantNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
