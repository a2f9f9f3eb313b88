package repository

import (
	"lingua_voice_backend/internal/model"

	"gorm.io/gorm"
)

type StreakRepository struct {
	DB *gorm.DB
}

func NewStreakRepository(db *gorm.DB) *StreakRepository {
	return &StreakRepository{DB: db}
}

func (r *StreakRepository) FindByUser(tx *gorm.DB, userID uint) (*model.Streak, error) {
	if tx == nil {
		tx = r.DB
	}
	var streak model.Streak
	err := tx.Where("user_id = ?", userID).First(&streak).Error
	return &streak, err
}

func (r *StreakRepository) Save(tx *gorm.DB, streak *model.Streak) error {
	if tx == nil {
		tx = r.DB
	}
	return tx.Save(streak).Error
}
