package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/namankalla/nishi/internal/domain"
	"gorm.io/gorm"
)

type PlantRepository struct {
	db *gorm.DB
}

func NewPlantRepository(db *gorm.DB) *PlantRepository {
	return &PlantRepository{db: db}
}

// AutoMigrate creates the plants and points_accounts tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Plant{}, &domain.PointsAccount{})
}

func (r *PlantRepository) Create(ctx context.Context, plant *domain.Plant) error {
	plant.ID = uuid.NewString()
	plant.Version = 1
	return r.db.WithContext(ctx).Create(plant).Error
}

func (r *PlantRepository) Get(ctx context.Context, id string) (*domain.Plant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrPlantNotFound
	}
	var plant domain.Plant
	err := r.db.WithContext(ctx).First(&plant, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPlantNotFound
		}
		return nil, err
	}
	return &plant, nil
}

// Save replaces every column, guarded by the version the caller read.
func (r *PlantRepository) Save(ctx context.Context, plant *domain.Plant) error {
	expected := plant.Version
	next := *plant
	next.Version = expected + 1

	result := r.db.WithContext(ctx).Model(&domain.Plant{}).
		Where("id = ? AND version = ?", plant.ID, expected).
		Select("*").
		Updates(next)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.Plant{}).
			Where("id = ?", plant.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrPlantNotFound
		}
		return domain.ErrVersionConflict
	}

	plant.Version = next.Version
	return nil
}

func (r *PlantRepository) ListByUser(ctx context.Context, userID string) ([]domain.Plant, error) {
	var plants []domain.Plant
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc, id asc").
		Find(&plants).Error
	return plants, err
}

func (r *PlantRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrPlantNotFound
	}
	result := r.db.WithContext(ctx).Delete(&domain.Plant{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrPlantNotFound
	}
	return nil
}
