// Package domain contains the subscription lifecycle models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/menuvia/menuvia/internal/plan/domain"
)

// Status represents lifecycle states for a subscription record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusHalted    Status = "halted"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Record is the single billing record per user. The pending_* columns
// stage an upgrade: they are all null or all set, and the primary
// plan fields stay untouched until the new subscription's first payment
// verifies.
type Record struct {
	ID                           snowflake.ID            `json:"id" gorm:"primaryKey"`
	UserID                       snowflake.ID            `json:"user_id" gorm:"not null;uniqueIndex"`
	RestaurantID                 snowflake.ID            `json:"restaurant_id" gorm:"not null;index"`
	PlanID                       snowflake.ID            `json:"plan_id" gorm:"not null"`
	BillingCycle                 plandomain.BillingCycle `json:"billing_cycle" gorm:"type:text;not null"`
	GatewaySubscriptionID        string                  `json:"gateway_subscription_id" gorm:"type:text;not null;index"`
	Status                       Status                  `json:"status" gorm:"type:text;not null"`
	CurrentPeriodStart           *time.Time              `json:"current_period_start"`
	CurrentPeriodEnd             *time.Time              `json:"current_period_end"`
	PendingPlanID                *snowflake.ID           `json:"pending_plan_id"`
	PendingGatewaySubscriptionID *string                 `json:"pending_gateway_subscription_id" gorm:"type:text"`
	PendingBillingCycle          *plandomain.BillingCycle `json:"pending_billing_cycle" gorm:"type:text"`
	CancelledAt                  *time.Time              `json:"cancelled_at"`
	CreatedAt                    time.Time               `json:"created_at" gorm:"not null"`
	UpdatedAt                    time.Time               `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "subscriptions" }

// HasPendingUpgrade reports whether an upgrade is staged.
func (r *Record) HasPendingUpgrade() bool {
	return r.PendingPlanID != nil && r.PendingGatewaySubscriptionID != nil && r.PendingBillingCycle != nil
}

// ClearPending resets the staged upgrade columns together.
func (r *Record) ClearPending() {
	r.PendingPlanID = nil
	r.PendingGatewaySubscriptionID = nil
	r.PendingBillingCycle = nil
}

// PeriodEnd computes the exclusive end of a billing period starting at
// start. Month arithmetic uses Go's native normalization, so a period
// anchored on Jan 31 rolls into early March rather than clamping to
// Feb 28/29.
func PeriodEnd(start time.Time, cycle plandomain.BillingCycle) time.Time {
	if cycle == plandomain.BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
