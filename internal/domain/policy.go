package domain

import (
	"fmt"
	"time"
)

// Policy holds the tunable numbers of the watering economy.
type Policy struct {
	CycleDays          int `mapstructure:"GARDEN_CYCLE_DAYS"`
	DeathThresholdDays int `mapstructure:"GARDEN_DEATH_THRESHOLD_DAYS"`
	DailyWaterCap      int `mapstructure:"GARDEN_DAILY_WATER_CAP"`
	// GraceDays is how many missed days still allow watering without recovery.
	GraceDays          int `mapstructure:"GARDEN_GRACE_DAYS"`
	PointsPerMissedDay int `mapstructure:"GARDEN_POINTS_PER_MISSED_DAY"`
}

func DefaultPolicy() Policy {
	return Policy{
		CycleDays:          28,
		DeathThresholdDays: 10,
		DailyWaterCap:      5,
		GraceDays:          1,
		PointsPerMissedDay: 1,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.CycleDays < 1:
		return fmt.Errorf("policy: cycle days must be positive, got %d", p.CycleDays)
	case p.DeathThresholdDays < 1:
		return fmt.Errorf("policy: death threshold must be positive, got %d", p.DeathThresholdDays)
	case p.DailyWaterCap < 1:
		return fmt.Errorf("policy: daily water cap must be positive, got %d", p.DailyWaterCap)
	case p.GraceDays < 0 || p.GraceDays >= p.DeathThresholdDays:
		return fmt.Errorf("policy: grace days must be in [0, %d), got %d", p.DeathThresholdDays, p.GraceDays)
	case p.PointsPerMissedDay < 0:
		return fmt.Errorf("policy: points per missed day must not be negative, got %d", p.PointsPerMissedDay)
	}
	return nil
}

// ClampDay forces a day index into [1, CycleDays].
func (p Policy) ClampDay(day int) int {
	return max(1, min(p.CycleDays, day))
}

// DayIndex is the 1-based position of t in the cycle that started on createdAt.
// An unreadable createdAt starts the cycle today.
func (p Policy) DayIndex(createdAt Date, t time.Time) int {
	days, err := DaysBetween(createdAt, t)
	if err != nil {
		return 1
	}
	return p.ClampDay(days + 1)
}

// RecoveryCost is the points price of forgiving missedDays.
func (p Policy) RecoveryCost(missedDays int) int {
	return missedDays * p.PointsPerMissedDay
}
