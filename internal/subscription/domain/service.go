package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/menuvia/menuvia/internal/plan/domain"
)

type CreateSubscriptionRequest struct {
	UserID       snowflake.ID            `json:"-"`
	PlanID       snowflake.ID            `json:"planId"`
	BillingCycle plandomain.BillingCycle `json:"billingCycle"`
}

// CreateSubscriptionResponse carries what the checkout widget needs.
type CreateSubscriptionResponse struct {
	GatewaySubscriptionID string `json:"subscriptionId"`
	KeyID                 string `json:"keyId"`
}

type VerifyPaymentRequest struct {
	UserID                snowflake.ID `json:"-"`
	PaymentID             string       `json:"paymentId"`
	GatewaySubscriptionID string       `json:"subscriptionId"`
	Signature             string       `json:"signature"`
}

type CancelSubscriptionResponse struct {
	Status      Status     `json:"status"`
	CancelledAt *time.Time `json:"cancelled_at"`
}

// StatusResponse is the subscription read model for the dashboard.
type StatusResponse struct {
	HasSubscription  bool                    `json:"has_subscription"`
	Status           Status                  `json:"status,omitempty"`
	PlanID           *snowflake.ID           `json:"plan_id,omitempty"`
	PlanName         string                  `json:"plan_name,omitempty"`
	BillingCycle     plandomain.BillingCycle `json:"billing_cycle,omitempty"`
	IsActive         bool                    `json:"is_active"`
	DaysRemaining    int                     `json:"days_remaining"`
	CurrentPeriodEnd *time.Time              `json:"current_period_end,omitempty"`
	PendingPlanID    *snowflake.ID           `json:"pending_plan_id,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (*CreateSubscriptionResponse, error)
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) error
	Cancel(ctx context.Context, userID snowflake.ID) (*CancelSubscriptionResponse, error)
	Status(ctx context.Context, userID snowflake.ID) (*StatusResponse, error)
}

var (
	ErrSubscriptionNotFound    = errors.New("subscription_not_found")
	ErrAlreadyCancelled        = errors.New("subscription_already_cancelled")
	ErrInvalidPaymentSignature = errors.New("invalid_payment_signature")
	ErrPaymentNotSuccessful    = errors.New("payment_not_successful")
	ErrInvalidBillingCycle     = errors.New("invalid_billing_cycle")
	ErrGatewayNotConfigured    = errors.New("gateway_not_configured")
)
