package migration

import (
	"github.com/menuvia/menuvia/internal/config"
	"github.com/menuvia/menuvia/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The migrate driver is postgres-only; sqlite is a test
		// concern and builds its schema in the test helpers.
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		return seed.EnsurePlanCatalog(conn)
	}),
)
