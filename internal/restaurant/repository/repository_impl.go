package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/menuvia/menuvia/internal/restaurant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Restaurant, error) {
	var item domain.Restaurant
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_user_id, name, slug, plan_id, created_at, updated_at
		 FROM restaurants
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByOwner(ctx context.Context, db *gorm.DB, ownerUserID snowflake.ID) (*domain.Restaurant, error) {
	var item domain.Restaurant
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_user_id, name, slug, plan_id, created_at, updated_at
		 FROM restaurants
		 WHERE owner_user_id = ?
		 ORDER BY created_at ASC
		 LIMIT 1`,
		ownerUserID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.Restaurant) error {
	if strings.TrimSpace(item.Slug) == "" {
		item.Slug = slug.Make(item.Name)
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO restaurants (id, owner_user_id, name, slug, plan_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OwnerUserID,
		item.Name,
		item.Slug,
		item.PlanID,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) UpdatePlan(ctx context.Context, db *gorm.DB, id snowflake.ID, planID *snowflake.ID, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE restaurants
		 SET plan_id = ?, updated_at = ?
		 WHERE id = ?`,
		planID,
		updatedAt,
		id,
	).Error
}
