package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/menuvia/menuvia/internal/config"
	plandomain "github.com/menuvia/menuvia/internal/plan/domain"
	planrepo "github.com/menuvia/menuvia/internal/plan/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&plandomain.Plan{}))
	return db
}

func seedPlan(t *testing.T, db *gorm.DB, node *snowflake.Node, slug string, active bool) snowflake.ID {
	t.Helper()
	plan := plandomain.Plan{
		ID:            node.Generate(),
		Name:          slug,
		Slug:          slug,
		PriceMonthly:  29900,
		PriceYearly:   299000,
		MaxMenuItems:  100,
		MaxCategories: 15,
		Active:        active,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, db.Create(&plan).Error)
	return plan.ID
}

func TestGetPlan(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), Repo: planrepo.Provide()})

	id := seedPlan(t, db, node, "basic", true)
	retired := seedPlan(t, db, node, "legacy", false)

	plan, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "basic", plan.Slug)
	assert.EqualValues(t, 29900, plan.PriceMonthly)

	_, err = svc.Get(context.Background(), node.Generate())
	assert.ErrorIs(t, err, plandomain.ErrPlanNotFound)

	// Retired tiers are invisible even by id.
	_, err = svc.Get(context.Background(), retired)
	assert.ErrorIs(t, err, plandomain.ErrPlanNotFound)
}

func TestListPlansSkipsInactive(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), Repo: planrepo.Provide()})

	seedPlan(t, db, node, "basic", true)
	seedPlan(t, db, node, "pro", true)
	seedPlan(t, db, node, "legacy", false)

	plans, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	for _, plan := range plans {
		assert.True(t, plan.Active)
	}
}

func TestGetPlanAppliesLimitOverrides(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	// No plans.yml on disk, so the holder falls back to the built-in
	// defaults, which carry a different basic-tier category ceiling
	// than the seeded row.
	limits, err := config.NewPlansConfigHolder()
	require.NoError(t, err)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), Repo: planrepo.Provide(), Limits: limits})

	id := seedPlan(t, db, node, "basic", true)
	plan, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 20, plan.MaxCategories)
	assert.Equal(t, 100, plan.MaxMenuItems)

	custom := seedPlan(t, db, node, "enterprise", true)
	plan, err = svc.Get(context.Background(), custom)
	require.NoError(t, err)
	assert.Equal(t, 15, plan.MaxCategories, "tiers without an override keep the catalog values")
}

func TestPriceFor(t *testing.T) {
	plan := plandomain.Plan{PriceMonthly: 29900, PriceYearly: 299000}
	assert.EqualValues(t, 29900, plan.PriceFor(plandomain.BillingCycleMonthly))
	assert.EqualValues(t, 299000, plan.PriceFor(plandomain.BillingCycleYearly))
}
