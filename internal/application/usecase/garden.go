package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/namankalla/nishi/internal/domain"
	"go.uber.org/zap"
)

type Metrics interface {
	Observe(op string, result string, d time.Duration)
}

type GardenUseCase struct {
	plants  domain.PlantStore
	points  domain.PointsLedger
	guard   domain.IdempotencyGuard
	policy  domain.Policy
	now     func() time.Time
	log     *zap.Logger
	metrics Metrics
}

type Option func(*GardenUseCase)

func WithClock(now func() time.Time) Option {
	return func(uc *GardenUseCase) { uc.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(uc *GardenUseCase) { uc.log = log }
}

func WithMetrics(m Metrics) Option {
	return func(uc *GardenUseCase) { uc.metrics = m }
}

// WithIdempotencyGuard enables de-duplication of keyed recovery requests.
func WithIdempotencyGuard(g domain.IdempotencyGuard) Option {
	return func(uc *GardenUseCase) { uc.guard = g }
}

func NewGardenUseCase(plants domain.PlantStore, points domain.PointsLedger, policy domain.Policy, opts ...Option) *GardenUseCase {
	uc := &GardenUseCase{
		plants: plants,
		points: points,
		policy: policy,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *GardenUseCase) Policy() domain.Policy {
	return uc.policy
}

// Status derives the plant's state at the current instant.
func (uc *GardenUseCase) Status(plant domain.Plant) domain.Status {
	return uc.policy.Status(plant, uc.now())
}

func (uc *GardenUseCase) Balance(ctx context.Context, userID string) (int, error) {
	bal, err := uc.points.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load balance: %w", err)
	}
	return bal, nil
}

// Credit adds earned points to the user's balance, opening the account on first
// use, and returns the new balance. reason names the earner and is only logged.
func (uc *GardenUseCase) Credit(ctx context.Context, userID string, amount int, reason string) (balance int, err error) {
	var noop bool
	defer func(start time.Time) { uc.track("credit", userID, "", start, &noop, &err) }(time.Now())

	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	balance, err = uc.points.Credit(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("credit points: %w", err)
	}
	uc.log.Debug("points credited",
		zap.String("user_id", userID),
		zap.Int("points", amount),
		zap.String("reason", reason),
		zap.Int("balance", balance))
	return balance, nil
}

// Session opens an empty plant cache for one user.
func (uc *GardenUseCase) Session(userID string) *Session {
	return &Session{uc: uc, userID: userID}
}

// checkDates logs stored plants whose cycle dates cannot be read. Such a
// plant counts as dead until it is transplanted.
func (uc *GardenUseCase) checkDates(p domain.Plant) {
	if err := p.CheckDates(); err != nil {
		uc.log.Warn("plant has an unreadable date",
			zap.String("user_id", p.UserID),
			zap.String("plant_id", p.ID),
			zap.Error(err))
	}
}

func isRejection(err error) bool {
	for _, target := range []error{
		domain.ErrNoPlant,
		domain.ErrPlantNotFound,
		domain.ErrPlantDead,
		domain.ErrDailyCapReached,
		domain.ErrRecoveryRequired,
		domain.ErrNotEnoughPoints,
		domain.ErrInvalidName,
		domain.ErrInvalidSpecies,
		domain.ErrVersionConflict,
		domain.ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (uc *GardenUseCase) track(op, userID, plantID string, start time.Time, noop *bool, err *error) {
	elapsed := time.Since(start)
	result := "ok"
	switch {
	case *err != nil && isRejection(*err):
		result = "rejected"
	case *err != nil:
		result = "error"
	case *noop:
		result = "noop"
	}
	if uc.metrics != nil {
		uc.metrics.Observe(op, result, elapsed)
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.String("plant_id", plantID),
		zap.String("result", result),
		zap.Duration("elapsed", elapsed),
	}
	switch result {
	case "error":
		uc.log.Error("plant operation failed", append(fields, zap.Error(*err))...)
	case "rejected":
		uc.log.Info("plant operation rejected", append(fields, zap.Error(*err))...)
	default:
		uc.log.Info("plant operation", fields...)
	}
}
