package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActorType identifies who performed an audited action.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
	ActorTypeCron   ActorType = "cron"
)

// AuditLog is an append-only record of a billing action.
type AuditLog struct {
	ID           snowflake.ID      `json:"id" gorm:"primaryKey"`
	RestaurantID *snowflake.ID     `json:"restaurant_id" gorm:"index"`
	ActorType    string            `json:"actor_type" gorm:"type:text;not null"`
	ActorID      *string           `json:"actor_id" gorm:"type:text"`
	Action       string            `json:"action" gorm:"type:text;not null;index"`
	TargetType   string            `json:"target_type" gorm:"type:text;not null"`
	TargetID     *string           `json:"target_id" gorm:"type:text"`
	Metadata     datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	IPAddress    *string           `json:"ip_address" gorm:"type:text"`
	UserAgent    *string           `json:"user_agent" gorm:"type:text"`
	CreatedAt    time.Time         `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
}

type Service interface {
	AuditLog(ctx context.Context, restaurantID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
}

var ErrInvalidAction = errors.New("invalid_action")
