// Package db opens the gorm handle and registers database metrics.
package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"

	"github.com/tidyroundlabs/tidyround/internal/config"
	employeedomain "github.com/tidyroundlabs/tidyround/internal/employee/domain"
	retrydomain "github.com/tidyroundlabs/tidyround/internal/paymentretry/domain"
	payoutdomain "github.com/tidyroundlabs/tidyround/internal/payout/domain"
	instancedomain "github.com/tidyroundlabs/tidyround/internal/serviceinstance/domain"
	subscriptiondomain "github.com/tidyroundlabs/tidyround/internal/subscription/domain"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	case "postgres", "":
		dialector = postgres.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Database.Driver != "sqlite" {
		if err := gdb.Use(gormprometheus.New(gormprometheus.Config{
			DBName:          "tidyround",
			RefreshInterval: 15,
		})); err != nil {
			log.Warn("failed to register gorm prometheus plugin", zap.Error(err))
		}
	}

	return gdb, nil
}

// AutoMigrate creates or updates the schema for every persisted model.
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&subscriptiondomain.ServicePlan{},
		&subscriptiondomain.Subscription{},
		&employeedomain.Employee{},
		&instancedomain.ServiceInstance{},
		&retrydomain.PaymentRetry{},
		&payoutdomain.Payout{},
		&payoutdomain.ReferralCommission{},
	)
}
