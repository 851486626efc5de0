package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Restaurant is the tenant a subscription pays for. PlanID is
// denormalized from the owner's active subscription so menu limits can
// be enforced without a join.
type Restaurant struct {
	ID          snowflake.ID  `json:"id" gorm:"primaryKey"`
	OwnerUserID snowflake.ID  `json:"owner_user_id" gorm:"not null;index"`
	Name        string        `json:"name" gorm:"type:text;not null"`
	Slug        string        `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	PlanID      *snowflake.ID `json:"plan_id" gorm:"index"`
	CreatedAt   time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Restaurant) TableName() string { return "restaurants" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Restaurant, error)
	FindByOwner(ctx context.Context, db *gorm.DB, ownerUserID snowflake.ID) (*Restaurant, error)
	Insert(ctx context.Context, db *gorm.DB, item *Restaurant) error
	UpdatePlan(ctx context.Context, db *gorm.DB, id snowflake.ID, planID *snowflake.ID, updatedAt time.Time) error
}

var ErrRestaurantNotFound = errors.New("restaurant_not_found")
