package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type Species string

const (
	SpeciesLemon    Species = "lemon"
	SpeciesSnake    Species = "snake"
	SpeciesCactus   Species = "cactus"
	SpeciesMonstera Species = "monstera"
)

// ParseSpecies accepts the four known species; empty means monstera.
func ParseSpecies(s string) (Species, error) {
	switch sp := Species(strings.ToLower(strings.TrimSpace(s))); sp {
	case "":
		return SpeciesMonstera, nil
	case SpeciesLemon, SpeciesSnake, SpeciesCactus, SpeciesMonstera:
		return sp, nil
	default:
		return "", ErrInvalidSpecies
	}
}

const (
	DefaultPlantName = "My Plant"
	MaxPlantNameLen  = 30
)

// NormalizeName trims the label and falls back to DefaultPlantName.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultPlantName, nil
	}
	if utf8.RuneCountInString(name) > MaxPlantNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}

type Plant struct {
	ID             string  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         string  `json:"userId" gorm:"index;not null"`
	Species        Species `json:"species" gorm:"size:16;not null"`
	Name           string  `json:"name" gorm:"size:30;not null"`
	CreatedAt      Date    `json:"createdAt" gorm:"type:char(10);not null"`
	LastWateredOn  Date    `json:"lastWateredOn" gorm:"type:char(10);not null"`
	IsDead         bool    `json:"isDead"`
	IsTransplanted bool    `json:"isTransplanted"`
	TransplantedAt Date    `json:"transplantedAt,omitempty" gorm:"type:char(10)"`
	// RecoveredOn grants one watering on that day regardless of missed days.
	RecoveredOn   Date `json:"recoveredOn,omitempty" gorm:"type:char(10)"`
	WaterCountDay int  `json:"waterCountDay"`
	WaterCount    int  `json:"waterCount"`

	// Deprecated: growth is derived from CreatedAt, never from this counter.
	GrowthDays int `json:"growthDays"`
	// Deprecated: the cap is keyed on WaterCountDay. Kept so old documents round-trip.
	WaterCountOn Date `json:"waterCountOn,omitempty" gorm:"type:char(10)"`

	Version   int64     `json:"version" gorm:"not null;default:1"`
	UpdatedAt time.Time `json:"-"`
}

func (Plant) TableName() string {
	return "plants"
}

// NewPlant starts a fresh cycle on today.
func NewPlant(userID string, species Species, name string, today Date) Plant {
	return Plant{
		UserID:        userID,
		Species:       species,
		Name:          name,
		CreatedAt:     today,
		LastWateredOn: today,
		WaterCountOn:  today,
		WaterCountDay: 1,
	}
}

// CheckDates reports the first cycle date that cannot be parsed.
func (p Plant) CheckDates() error {
	for field, d := range map[string]Date{"createdAt": p.CreatedAt, "lastWateredOn": p.LastWateredOn} {
		if _, err := d.In(time.UTC); err != nil {
			return fmt.Errorf("%s: %w %q", field, ErrInvalidDate, string(d))
		}
	}
	return nil
}

// PointsAccount is the per-user balance spent on recovery.
type PointsAccount struct {
	UserID    string `gorm:"primaryKey"`
	Points    int    `gorm:"not null;default:0;check:points >= 0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PointsAccount) TableName() string {
	return "points_accounts"
}
