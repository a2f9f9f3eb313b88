package repository

import (
	"lingua_voice_backend/internal/model"

	"gorm.io/gorm"
)

type TurnRepository struct {
	DB *gorm.DB
}

func NewTurnRepository(db *gorm.DB) *TurnRepository {
	return &TurnRepository{DB: db}
}

func (r *TurnRepository) Create(turn *model.Turn) error {
	return r.DB.Create(turn).Error
}

func (r *TurnRepository) CreateBatch(turns []model.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	return r.DB.Create(&turns).Error
}

func (r *TurnRepository) ListBySession(sessionID string) ([]model.Turn, error) {
	var turns []model.Turn
	err := r.DB.Where("session_id = ?", sessionID).
		Order("turn_index ASC").Find(&turns).Error
	return turns, err
}

func (r *TurnRepository) CountBySession(sessionID string) (int64, error) {
	var total int64
	err := r.DB.Model(&model.Turn{}).
		Where("session_id = ?", sessionID).Count(&total).Error
	return total, err
}
