package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/menuvia/menuvia/internal/plan/domain"
	"github.com/menuvia/menuvia/pkg/db"
	"gorm.io/gorm"
)

type planSeed struct {
	Name             string
	Slug             string
	PriceMonthly     int64
	PriceYearly      int64
	HasOrdersFeature bool
	MaxMenuItems     int
	MaxCategories    int
}

// Prices are in paise; yearly is two months free.
var defaultPlans = []planSeed{
	{Name: "Free", Slug: "free", PriceMonthly: 0, PriceYearly: 0, MaxMenuItems: 10, MaxCategories: 3},
	{Name: "Basic", Slug: "basic", PriceMonthly: 29900, PriceYearly: 299000, MaxMenuItems: 100, MaxCategories: 15},
	{Name: "Pro", Slug: "pro", PriceMonthly: 59900, PriceYearly: 599000, HasOrdersFeature: true, MaxMenuItems: -1, MaxCategories: -1},
}

// EnsurePlanCatalog seeds the default plans for startup bootstrap.
// Existing plans are left untouched so operators can reprice them.
func EnsurePlanCatalog(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, seed := range defaultPlans {
			var existing plandomain.Plan
			err := tx.WithContext(ctx).Where("slug = ?", seed.Slug).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			plan := plandomain.Plan{
				ID:               node.Generate(),
				Name:             seed.Name,
				Slug:             seed.Slug,
				PriceMonthly:     seed.PriceMonthly,
				PriceYearly:      seed.PriceYearly,
				HasOrdersFeature: seed.HasOrdersFeature,
				MaxMenuItems:     seed.MaxMenuItems,
				MaxCategories:    seed.MaxCategories,
				Active:           true,
				CreatedAt:        time.Now().UTC(),
			}
			if err := tx.WithContext(ctx).Create(&plan).Error; err != nil {
				// Another replica seeded this slug between the
				// lookup and the insert.
				if db.IsDuplicateKeyErr(err) {
					continue
				}
				return err
			}
		}
		return nil
	})
}
