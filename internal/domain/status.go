package domain

import "time"

// Status is what the presentation layer needs to render a plant.
type Status struct {
	MissedDays int  `json:"missedDays"`
	CanWater   bool `json:"canWater"`
	IsDead     bool `json:"isDead"`
	DayIndex   int  `json:"dayIndex"`
}

// Status derives the plant's state at t. It has no side effects.
func (p Policy) Status(plant Plant, t time.Time) Status {
	if plant.IsTransplanted {
		return Status{DayIndex: p.CycleDays}
	}

	today := DateOf(t)
	missed := p.MissedDays(plant, t)
	dead := plant.IsDead || missed >= p.DeathThresholdDays
	day := p.DayIndex(plant.CreatedAt, t)
	count := p.CountOn(plant, day)
	underCap := count < p.DailyWaterCap
	// Creation and recovery stamp LastWateredOn without an actual watering.
	wateredToday := plant.LastWateredOn == today && count > 0
	recoveredToday := !plant.RecoveredOn.IsZero() && plant.RecoveredOn == today

	return Status{
		MissedDays: missed,
		CanWater:   !dead && underCap && (recoveredToday || (missed <= p.GraceDays && !wateredToday)),
		IsDead:     dead,
		DayIndex:   day,
	}
}

// MissedDays is the number of calendar days since the last watering, never negative.
// A plant whose last watering date cannot be read has missed the death threshold.
func (p Policy) MissedDays(plant Plant, t time.Time) int {
	if plant.IsTransplanted {
		return 0
	}
	days, err := DaysBetween(plant.LastWateredOn, t)
	if err != nil {
		return p.DeathThresholdDays
	}
	return max(0, days)
}

// CountOn returns how many waterings were already applied on cycle day.
func (p Policy) CountOn(plant Plant, day int) int {
	if plant.WaterCountDay != day {
		return 0
	}
	return plant.WaterCount
}
