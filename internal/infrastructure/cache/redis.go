package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/namankalla/nishi/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PlantCache keeps plant documents in Redis in front of a PlantStore.
// Writes always go to the store; cached entries are dropped on every write.
type PlantCache struct {
	store  domain.PlantStore
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewPlantCache(store domain.PlantStore, client *redis.Client, ttl time.Duration, log *zap.Logger) *PlantCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &PlantCache{store: store, client: client, ttl: ttl, log: log}
}

func plantKey(id string) string {
	return "plant:" + id
}

func userPlantsKey(userID string) string {
	return "plants:user:" + userID
}

func (c *PlantCache) Create(ctx context.Context, plant *domain.Plant) error {
	if err := c.store.Create(ctx, plant); err != nil {
		return err
	}
	c.invalidate(ctx, userPlantsKey(plant.UserID))
	return nil
}

func (c *PlantCache) Get(ctx context.Context, id string) (*domain.Plant, error) {
	var cached domain.Plant
	if c.read(ctx, plantKey(id), &cached) {
		return &cached, nil
	}

	plant, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.write(ctx, plantKey(id), plant)
	return plant, nil
}

func (c *PlantCache) Save(ctx context.Context, plant *domain.Plant) error {
	err := c.store.Save(ctx, plant)
	// A conflict may come from a stale cached copy, so drop it either way.
	c.invalidate(ctx, plantKey(plant.ID), userPlantsKey(plant.UserID))
	return err
}

func (c *PlantCache) ListByUser(ctx context.Context, userID string) ([]domain.Plant, error) {
	var cached []domain.Plant
	if c.read(ctx, userPlantsKey(userID), &cached) {
		return cached, nil
	}

	plants, err := c.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.write(ctx, userPlantsKey(userID), plants)
	return plants, nil
}

func (c *PlantCache) Delete(ctx context.Context, id string) error {
	keys := []string{plantKey(id)}
	if plant, err := c.store.Get(ctx, id); err == nil {
		keys = append(keys, userPlantsKey(plant.UserID))
	}
	err := c.store.Delete(ctx, id)
	c.invalidate(ctx, keys...)
	return err
}

func (c *PlantCache) read(ctx context.Context, key string, dst any) bool {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("plant cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		c.log.Warn("plant cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *PlantCache) write(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("plant cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *PlantCache) invalidate(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("plant cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// IdempotencyCache claims recovery keys with SETNX so a retried request runs once.
type IdempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyCache(client *redis.Client, ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{client: client, ttl: ttl}
}

func (c *IdempotencyCache) Claim(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, "recover:"+key, 1, c.ttl).Result()
}

func (c *IdempotencyCache) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, "recover:"+key).Err()
}
