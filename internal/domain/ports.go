package domain

import "context"

// PlantStore persists plant documents. Save replaces the whole record and
// succeeds only when plant.Version matches the stored version; the stored
// version is then incremented and written back into plant.
type PlantStore interface {
	Create(ctx context.Context, plant *Plant) error
	Get(ctx context.Context, id string) (*Plant, error)
	Save(ctx context.Context, plant *Plant) error
	ListByUser(ctx context.Context, userID string) ([]Plant, error)
	Delete(ctx context.Context, id string) error
}

// PointsLedger is the per-account balance. Spend never lets the balance go
// below zero and fails with ErrNotEnoughPoints instead.
type PointsLedger interface {
	Balance(ctx context.Context, userID string) (int, error)
	Spend(ctx context.Context, userID string, amount int) (int, error)
	Credit(ctx context.Context, userID string, amount int) (int, error)
}

// IdempotencyGuard remembers keys of requests that already ran.
type IdempotencyGuard interface {
	// Claim reports false when the key was claimed before.
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
