package migration

import (
	"github.com/smallbiznis/orgkeys/internal/config"
	"github.com/smallbiznis/orgkeys/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		log = log.Named("migration")
		if cfg.DBType != db.TypePostgres {
			log.Info("applying schema from models", zap.String("db_type", cfg.DBType))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		log.Info("applying embedded migrations")
		return RunMigrations(sqlDB)
	}),
)
