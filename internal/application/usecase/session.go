package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/namankalla/nishi/internal/domain"
	"go.uber.org/zap"
)

// Session caches one user's plant list and the plant currently being tended.
// Mutations work only on the current plant; each one re-reads the stored
// record, validates it, writes it back and then refreshes the cache.
// A Session is not safe for concurrent use.
type Session struct {
	uc      *GardenUseCase
	userID  string
	plants  []domain.Plant
	current *domain.Plant
}

func (s *Session) UserID() string {
	return s.userID
}

// Current returns a copy of the loaded plant, or nil.
func (s *Session) Current() *domain.Plant {
	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}

// Status derives the current plant's state; ErrNoPlant when nothing is loaded.
func (s *Session) Status() (domain.Status, error) {
	if s.current == nil {
		return domain.Status{}, domain.ErrNoPlant
	}
	return s.uc.Status(*s.current), nil
}

func (s *Session) Plants() []domain.Plant {
	out := make([]domain.Plant, len(s.plants))
	copy(out, s.plants)
	return out
}

func (s *Session) LoadPlants(ctx context.Context) ([]domain.Plant, error) {
	plants, err := s.uc.plants.ListByUser(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("load plants: %w", err)
	}
	for _, p := range plants {
		s.uc.checkDates(p)
	}
	s.plants = plants
	return s.Plants(), nil
}

// LoadPlant makes id the current plant. Plants of other users are reported as not found.
func (s *Session) LoadPlant(ctx context.Context, id string) (domain.Plant, error) {
	p, err := s.uc.plants.Get(ctx, id)
	if err == nil && p.UserID != s.userID {
		err = domain.ErrPlantNotFound
	}
	if err != nil {
		s.current = nil
		if errors.Is(err, domain.ErrPlantNotFound) {
			return domain.Plant{}, err
		}
		return domain.Plant{}, fmt.Errorf("load plant %s: %w", id, err)
	}
	s.uc.checkDates(*p)
	s.remember(*p)
	return *p, nil
}

func (s *Session) CreatePlant(ctx context.Context, species, name string) (plant domain.Plant, err error) {
	var noop bool
	defer func(start time.Time) { s.uc.track("create", s.userID, plant.ID, start, &noop, &err) }(time.Now())

	sp, err := domain.ParseSpecies(species)
	if err != nil {
		return domain.Plant{}, err
	}
	label, err := domain.NormalizeName(name)
	if err != nil {
		return domain.Plant{}, err
	}

	p := domain.NewPlant(s.userID, sp, label, domain.DateOf(s.uc.now()))
	if err := s.uc.plants.Create(ctx, &p); err != nil {
		return domain.Plant{}, fmt.Errorf("create plant: %w", err)
	}
	s.plants = append(s.plants, p)
	s.remember(p)
	return p, nil
}

// WaterToday applies one watering. dayIndexOverride pins the cap to the day
// index the caller displayed; it is clamped into the cycle.
func (s *Session) WaterToday(ctx context.Context, id string, dayIndexOverride *int) (plant domain.Plant, err error) {
	var noop bool
	defer func(start time.Time) { s.uc.track("water", s.userID, id, start, &noop, &err) }(time.Now())

	p, err := s.fresh(ctx, id)
	if err != nil {
		return domain.Plant{}, err
	}
	if p.IsTransplanted {
		noop = true
		return *p, nil
	}

	policy := s.uc.policy
	now := s.uc.now()
	today := domain.DateOf(now)
	missed := policy.MissedDays(*p, now)

	if p.IsDead || missed >= policy.DeathThresholdDays {
		return domain.Plant{}, domain.ErrPlantDead
	}
	day := policy.DayIndex(p.CreatedAt, now)
	if dayIndexOverride != nil {
		day = policy.ClampDay(*dayIndexOverride)
	}
	count := policy.CountOn(*p, day)
	if count >= policy.DailyWaterCap {
		return domain.Plant{}, domain.DailyCapError{Cap: policy.DailyWaterCap}
	}
	if p.RecoveredOn != today && missed > policy.GraceDays {
		return domain.Plant{}, domain.ErrRecoveryRequired
	}

	p.LastWateredOn = today
	p.RecoveredOn = ""
	p.WaterCountOn = today
	p.WaterCountDay = day
	p.WaterCount = count + 1
	if err := s.persist(ctx, p); err != nil {
		return domain.Plant{}, err
	}
	return *p, nil
}

// RecoverMissedDays buys back the missed days and allows one watering today.
// A non-empty idempotencyKey makes retries of the same request no-ops. When the
// plant cannot be written after the points were spent, the points are refunded.
func (s *Session) RecoverMissedDays(ctx context.Context, id, idempotencyKey string) (plant domain.Plant, err error) {
	var noop bool
	defer func(start time.Time) { s.uc.track("recover", s.userID, id, start, &noop, &err) }(time.Now())

	p, err := s.fresh(ctx, id)
	if err != nil {
		return domain.Plant{}, err
	}
	if p.IsTransplanted {
		noop = true
		return *p, nil
	}

	policy := s.uc.policy
	now := s.uc.now()
	st := policy.Status(*p, now)
	if st.IsDead {
		return domain.Plant{}, domain.ErrPlantDead
	}
	if st.MissedDays <= 0 {
		noop = true
		return *p, nil
	}

	release := func() {}
	if idempotencyKey != "" && s.uc.guard != nil {
		key := s.userID + ":" + idempotencyKey
		claimed, err := s.uc.guard.Claim(ctx, key)
		if err != nil {
			return domain.Plant{}, fmt.Errorf("claim idempotency key: %w", err)
		}
		if !claimed {
			noop = true
			return *p, nil
		}
		release = func() {
			if err := s.uc.guard.Release(context.WithoutCancel(ctx), key); err != nil {
				s.uc.log.Warn("release idempotency key", zap.String("key", key), zap.Error(err))
			}
		}
	}

	cost := policy.RecoveryCost(st.MissedDays)
	if cost > 0 {
		if _, err := s.uc.points.Spend(ctx, s.userID, cost); err != nil {
			release()
			if errors.Is(err, domain.ErrNotEnoughPoints) {
				return domain.Plant{}, domain.ErrNotEnoughPoints
			}
			return domain.Plant{}, fmt.Errorf("spend points: %w", err)
		}
	}

	today := domain.DateOf(now)
	p.LastWateredOn = today
	p.RecoveredOn = today
	p.WaterCount = policy.CountOn(*p, st.DayIndex)
	p.WaterCountDay = st.DayIndex
	if err := s.persist(ctx, p); err != nil {
		s.refund(ctx, id, cost)
		release()
		return domain.Plant{}, err
	}
	return *p, nil
}

func (s *Session) refund(ctx context.Context, plantID string, cost int) {
	if cost <= 0 {
		return
	}
	if _, err := s.uc.points.Credit(context.WithoutCancel(ctx), s.userID, cost); err != nil {
		s.uc.log.Error("recovery refund failed, points lost",
			zap.String("user_id", s.userID),
			zap.String("plant_id", plantID),
			zap.Int("points", cost),
			zap.Error(err))
		return
	}
	s.uc.log.Warn("recovery not applied, points refunded",
		zap.String("user_id", s.userID),
		zap.String("plant_id", plantID),
		zap.Int("points", cost))
}

// TransplantPlant ends the active cycle. It is allowed in any state, dead included.
func (s *Session) TransplantPlant(ctx context.Context, id string) (plant domain.Plant, err error) {
	var noop bool
	defer func(start time.Time) { s.uc.track("transplant", s.userID, id, start, &noop, &err) }(time.Now())

	p, err := s.fresh(ctx, id)
	if err != nil {
		return domain.Plant{}, err
	}

	today := domain.DateOf(s.uc.now())
	p.IsTransplanted = true
	p.TransplantedAt = today
	p.CreatedAt = today
	p.LastWateredOn = today
	p.GrowthDays = 0
	p.IsDead = false
	p.RecoveredOn = ""
	p.WaterCountOn = today
	p.WaterCountDay = 1
	p.WaterCount = 0
	if err := s.persist(ctx, p); err != nil {
		return domain.Plant{}, err
	}
	return *p, nil
}

func (s *Session) RenamePlant(ctx context.Context, id, name string) (plant domain.Plant, err error) {
	var noop bool
	defer func(start time.Time) { s.uc.track("rename", s.userID, id, start, &noop, &err) }(time.Now())

	label, err := domain.NormalizeName(name)
	if err != nil {
		return domain.Plant{}, err
	}
	p, err := s.fresh(ctx, id)
	if err != nil {
		return domain.Plant{}, err
	}
	p.Name = label
	if err := s.persist(ctx, p); err != nil {
		return domain.Plant{}, err
	}
	return *p, nil
}

// DeletePlant removes the plant for good. It does not need to be loaded first.
func (s *Session) DeletePlant(ctx context.Context, id string) (err error) {
	var noop bool
	defer func(start time.Time) { s.uc.track("delete", s.userID, id, start, &noop, &err) }(time.Now())

	p, err := s.uc.plants.Get(ctx, id)
	if err == nil && p.UserID != s.userID {
		err = domain.ErrPlantNotFound
	}
	if err != nil {
		if errors.Is(err, domain.ErrPlantNotFound) {
			return err
		}
		return fmt.Errorf("load plant %s: %w", id, err)
	}
	if err := s.uc.plants.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrPlantNotFound) {
			return err
		}
		return fmt.Errorf("delete plant %s: %w", id, err)
	}
	s.forget(id)
	return nil
}

// fresh re-reads the current plant from the store.
func (s *Session) fresh(ctx context.Context, id string) (*domain.Plant, error) {
	if s.current == nil || s.current.ID != id {
		return nil, domain.ErrNoPlant
	}
	p, err := s.uc.plants.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPlantNotFound) {
			s.forget(id)
			return nil, domain.ErrNoPlant
		}
		return nil, fmt.Errorf("load plant %s: %w", id, err)
	}
	if p.UserID != s.userID {
		s.forget(id)
		return nil, domain.ErrNoPlant
	}
	s.uc.checkDates(*p)
	return p, nil
}

func (s *Session) persist(ctx context.Context, p *domain.Plant) error {
	if err := s.uc.plants.Save(ctx, p); err != nil {
		return fmt.Errorf("save plant %s: %w", p.ID, err)
	}
	s.remember(*p)
	return nil
}

func (s *Session) remember(p domain.Plant) {
	s.current = &p
	for i := range s.plants {
		if s.plants[i].ID == p.ID {
			s.plants[i] = p
			return
		}
	}
}

func (s *Session) forget(id string) {
	kept := s.plants[:0]
	for _, p := range s.plants {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.plants = kept
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
}
