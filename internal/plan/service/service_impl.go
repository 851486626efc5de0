package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/menuvia/menuvia/internal/config"
	plandomain "github.com/menuvia/menuvia/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   plandomain.Repository
	Limits *config.PlansConfigHolder `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   plandomain.Repository
	limits *config.PlansConfigHolder
}

func NewService(p Params) plandomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("plan.service"),
		repo:   p.Repo,
		limits: p.Limits,
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*plandomain.Plan, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.Active {
		return nil, plandomain.ErrPlanNotFound
	}
	return s.applyLimitOverrides(item), nil
}

func (s *Service) List(ctx context.Context) ([]plandomain.Plan, error) {
	items, err := s.repo.ListActive(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]plandomain.Plan, 0, len(items))
	for i := range items {
		out = append(out, *s.applyLimitOverrides(&items[i]))
	}
	return out, nil
}

// applyLimitOverrides merges hot-reloadable feature limit overrides onto
// the seeded catalog row.
func (s *Service) applyLimitOverrides(item *plandomain.Plan) *plandomain.Plan {
	if s.limits == nil {
		return item
	}
	override := s.limits.LimitsFor(item.Slug)
	if override == nil {
		return item
	}
	merged := *item
	merged.MaxMenuItems = override.MaxMenuItems
	merged.MaxCategories = override.MaxCategories
	merged.HasOrdersFeature = override.HasOrdersModule
	return &merged
}
