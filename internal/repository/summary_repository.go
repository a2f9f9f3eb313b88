package repository

import (
	"lingua_voice_backend/internal/model"

	"gorm.io/gorm"
)

type SummaryRepository struct {
	DB *gorm.DB
}

func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{DB: db}
}

func (r *SummaryRepository) Create(tx *gorm.DB, summary *model.SessionSummary) error {
	if tx == nil {
		tx = r.DB
	}
	return tx.Create(summary).Error
}

func (r *SummaryRepository) FindBySession(sessionID string) (*model.SessionSummary, error) {
	var summary model.SessionSummary
	err := r.DB.Where("session_id = ?", sessionID).First(&summary).Error
	return &summary, err
}

// ListRecentByUser returns the user's latest n summaries, newest first.
func (r *SummaryRepository) ListRecentByUser(tx *gorm.DB, userID uint, n int) ([]model.SessionSummary, error) {
	if tx == nil {
		tx = r.DB
	}
	var summaries []model.SessionSummary
	err := tx.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(n).Find(&summaries).Error
	return summaries, err
}

func (r *SummaryRepository) ListByUser(userID uint, page, limit int) ([]model.SessionSummary, int64, error) {
	var summaries []model.SessionSummary
	var total int64

	query := r.DB.Model(&model.SessionSummary{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&summaries).Error
	return summaries, total, err
}
