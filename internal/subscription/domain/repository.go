package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Record, error)
	// FindByUserIDForUpdate locks the row inside a transaction.
	FindByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*Record, error)
	// FindByGatewaySubscriptionID matches either the primary or the
	// staged gateway subscription id.
	FindByGatewaySubscriptionID(ctx context.Context, db *gorm.DB, gatewaySubscriptionID string) (*Record, error)
	Insert(ctx context.Context, db *gorm.DB, record *Record) error
	Update(ctx context.Context, db *gorm.DB, record *Record) error
	// ListExpired returns active records whose period end has passed.
	ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Record, error)
	// MarkExpired flips an active record to expired; reports whether
	// the row was still active.
	MarkExpired(ctx context.Context, db *gorm.DB, id snowflake.ID, updatedAt time.Time) (bool, error)
}
