package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/menuvia/menuvia/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const recordColumns = `id, user_id, restaurant_id, plan_id, billing_cycle,
	gateway_subscription_id, status, current_period_start, current_period_end,
	pending_plan_id, pending_gateway_subscription_id, pending_billing_cycle,
	cancelled_at, created_at, updated_at`

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Record, error) {
	var item domain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM subscriptions
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*domain.Record, error) {
	var item domain.Record
	query := `SELECT ` + recordColumns + `
		 FROM subscriptions
		 WHERE user_id = ?
		 LIMIT 1`
	if tx.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}
	err := tx.WithContext(ctx).Raw(query, userID).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByGatewaySubscriptionID(ctx context.Context, db *gorm.DB, gatewaySubscriptionID string) (*domain.Record, error) {
	var item domain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM subscriptions
		 WHERE gateway_subscription_id = ? OR pending_gateway_subscription_id = ?
		 LIMIT 1`,
		gatewaySubscriptionID,
		gatewaySubscriptionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UserID,
		record.RestaurantID,
		record.PlanID,
		record.BillingCycle,
		record.GatewaySubscriptionID,
		record.Status,
		record.CurrentPeriodStart,
		record.CurrentPeriodEnd,
		record.PendingPlanID,
		record.PendingGatewaySubscriptionID,
		record.PendingBillingCycle,
		record.CancelledAt,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET
			plan_id = ?,
			billing_cycle = ?,
			gateway_subscription_id = ?,
			status = ?,
			current_period_start = ?,
			current_period_end = ?,
			pending_plan_id = ?,
			pending_gateway_subscription_id = ?,
			pending_billing_cycle = ?,
			cancelled_at = ?,
			updated_at = ?
		 WHERE id = ?`,
		record.PlanID,
		record.BillingCycle,
		record.GatewaySubscriptionID,
		record.Status,
		record.CurrentPeriodStart,
		record.CurrentPeriodEnd,
		record.PendingPlanID,
		record.PendingGatewaySubscriptionID,
		record.PendingBillingCycle,
		record.CancelledAt,
		record.UpdatedAt,
		record.ID,
	).Error
}

func (r *repo) ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Record, error) {
	var items []domain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM subscriptions
		 WHERE status = ? AND current_period_end IS NOT NULL AND current_period_end < ?
		 ORDER BY current_period_end ASC
		 LIMIT ?`,
		domain.StatusActive,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkExpired(ctx context.Context, db *gorm.DB, id snowflake.ID, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusExpired,
		updatedAt,
		id,
		domain.StatusActive,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
