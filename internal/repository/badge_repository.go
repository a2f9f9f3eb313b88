package repository

import (
	"lingua_voice_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeRepository struct {
	DB *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{DB: db}
}

// Award inserts the badge if the user does not already hold it.
// Returns true when the badge was newly granted.
func (r *BadgeRepository) Award(tx *gorm.DB, badge *model.UserBadge) (bool, error) {
	if tx == nil {
		tx = r.DB
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(badge)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *BadgeRepository) ListByUser(userID uint) ([]model.UserBadge, error) {
	var badges []model.UserBadge
	err := r.DB.Where("user_id = ?", userID).
		Order("earned_at DESC").Find(&badges).Error
	return badges, err
}

func (r *BadgeRepository) Has(tx *gorm.DB, userID uint, badgeKey string) (bool, error) {
	if tx == nil {
		tx = r.DB
	}
	var count int64
	err := tx.Model(&model.UserBadge{}).
		Where("user_id = ? AND badge_key = ?", userID, badgeKey).
		Count(&count).Error
	return count > 0, err
}
