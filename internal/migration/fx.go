package migration

import (
	apikeydomain "github.com/quotaapp/searchd/internal/apikey/domain"
	"github.com/quotaapp/searchd/internal/config"
	querylogdomain "github.com/quotaapp/searchd/internal/querylog/domain"
	"github.com/quotaapp/searchd/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql are development targets; gorm derives
			// their schema from the models.
			err := conn.AutoMigrate(
				&querylogdomain.QueryLog{},
				&apikeydomain.APIKey{},
			)
			if err != nil {
				return err
			}
		}

		return seed.EnsureDevAPIKey(conn, cfg)
	}),
)
