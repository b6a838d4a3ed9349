package domain

import (
	"errors"
	"fmt"
)

// Business-rule messages are shown to the user as is.
var (
	ErrNoPlant          = errors.New("No plant")
	ErrPlantDead        = errors.New("Plant is dead")
	ErrDailyCapReached  = errors.New("daily watering cap reached")
	ErrRecoveryRequired = errors.New("Recover missed days first")
	ErrNotEnoughPoints  = errors.New("Not enough points")

	ErrPlantNotFound   = errors.New("plant not found")
	ErrVersionConflict = errors.New("plant was modified concurrently")
	ErrInvalidSpecies  = errors.New("unknown plant species")
	ErrInvalidName     = errors.New("plant name must be at most 30 characters")
	ErrInvalidAmount   = errors.New("points amount must be positive")
	ErrInvalidDate     = errors.New("invalid calendar date")
)

// DailyCapError reports the cap that was hit. It matches ErrDailyCapReached.
type DailyCapError struct {
	Cap int
}

func (e DailyCapError) Error() string {
	return fmt.Sprintf("Already watered %d times today", e.Cap)
}

func (e DailyCapError) Is(target error) bool {
	return target == ErrDailyCapReached
}
