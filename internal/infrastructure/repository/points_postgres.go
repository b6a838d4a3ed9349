package repository

import (
	"context"
	"errors"

	"github.com/namankalla/nishi/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PointsRepository struct {
	db *gorm.DB
}

func NewPointsRepository(db *gorm.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// Balance returns zero for accounts that never earned points.
func (r *PointsRepository) Balance(ctx context.Context, userID string) (int, error) {
	var acc domain.PointsAccount
	err := r.db.WithContext(ctx).First(&acc, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return acc.Points, nil
}

// Spend decrements only when the balance covers the amount, in one statement.
func (r *PointsRepository) Spend(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	result := r.db.WithContext(ctx).Model(&domain.PointsAccount{}).
		Where("user_id = ? AND points >= ?", userID, amount).
		Update("points", gorm.Expr("points - ?", amount))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, domain.ErrNotEnoughPoints
	}
	return r.Balance(ctx, userID)
}

func (r *PointsRepository) Credit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"points":     gorm.Expr("points_accounts.points + ?", amount),
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(&domain.PointsAccount{UserID: userID, Points: amount}).Error
	if err != nil {
		return 0, err
	}
	return r.Balance(ctx, userID)
}
