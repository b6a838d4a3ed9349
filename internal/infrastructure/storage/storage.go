// Package storage assembles the persistence backend chosen by STORAGE_DRIVER.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/namankalla/nishi/config"
	"github.com/namankalla/nishi/internal/domain"
	"github.com/namankalla/nishi/internal/infrastructure/cache"
	"github.com/namankalla/nishi/internal/infrastructure/memory"
	"github.com/namankalla/nishi/internal/infrastructure/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// idempotencyTTL bounds how long a recovery request key is remembered.
const idempotencyTTL = 24 * time.Hour

type Backend struct {
	Plants domain.PlantStore
	Points domain.PointsLedger
	Guard  domain.IdempotencyGuard
	// Redis is nil for the memory driver.
	Redis  *redis.Client
	Probes map[string]func(context.Context) error

	closers []func() error
}

func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return &Backend{
			Plants: memory.NewPlantStore(),
			Points: memory.NewLedger(),
			Guard:  memory.NewGuard(),
			Probes: map[string]func(context.Context) error{},
		}, nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openPostgres(ctx context.Context, cfg config.Config, log *zap.Logger) (*Backend, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres handle: %w", err)
	}
	if err := repository.AutoMigrate(db.WithContext(ctx)); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// The plant cache degrades to the database; idempotency keys need redis.
		log.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	log.Info("storage ready", zap.String("db_host", cfg.DBHost), zap.String("redis", cfg.RedisAddr))

	return &Backend{
		Plants: cache.NewPlantCache(repository.NewPlantRepository(db), rdb, cfg.CacheTTL, log),
		Points: repository.NewPointsRepository(db),
		Guard:  cache.NewIdempotencyCache(rdb, idempotencyTTL),
		Redis:  rdb,
		Probes: map[string]func(context.Context) error{
			"postgres": sqlDB.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		closers: []func() error{sqlDB.Close, rdb.Close},
	}, nil
}
