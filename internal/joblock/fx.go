package joblock

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidyroundlabs/tidyround/internal/config"
)

var Module = fx.Module("joblock",
	fx.Provide(NewClient),
	fx.Provide(ProvideLocker),
)

func NewClient(cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func ProvideLocker(cfg config.Config, rdb *redis.Client, log *zap.Logger) *Locker {
	return New(rdb, cfg.Scheduler.JobLockTTL, log)
}
