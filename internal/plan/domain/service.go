// Package domain contains the plan catalog models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// BillingCycle selects which catalog price applies.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleYearly
}

// Plan is a row of the seeded plan catalog. Prices are minor units.
type Plan struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	Name             string       `json:"name" gorm:"type:text;not null"`
	Slug             string       `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	PriceMonthly     int64        `json:"price_monthly" gorm:"not null"`
	PriceYearly      int64        `json:"price_yearly" gorm:"not null"`
	HasOrdersFeature bool         `json:"has_orders_feature" gorm:"not null;default:false"`
	MaxMenuItems     int          `json:"max_menu_items" gorm:"not null;default:0"`
	MaxCategories    int          `json:"max_categories" gorm:"not null;default:0"`
	// No gorm default here: gorm drops zero values for defaulted
	// columns on insert, which would turn a retired plan back on.
	Active    bool      `json:"active" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// PriceFor returns the price in minor units for the billing cycle.
func (p Plan) PriceFor(cycle BillingCycle) int64 {
	if cycle == BillingCycleYearly {
		return p.PriceYearly
	}
	return p.PriceMonthly
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Plan, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Plan, error)
}

type Service interface {
	Get(ctx context.Context, id snowflake.ID) (*Plan, error)
	List(ctx context.Context) ([]Plan, error)
}

var (
	ErrPlanNotFound = errors.New("plan_not_found")
)
