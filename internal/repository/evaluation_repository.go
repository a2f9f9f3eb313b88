package repository

import (
	"time"

	"lingua_voice_backend/internal/model"

	"gorm.io/gorm"
)

type EvaluationRepository struct {
	DB *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{DB: db}
}

func (r *EvaluationRepository) Create(eval *model.Evaluation) error {
	return r.DB.Create(eval).Error
}

func (r *EvaluationRepository) CreateBatch(evals []model.Evaluation) error {
	if len(evals) == 0 {
		return nil
	}
	return r.DB.Create(&evals).Error
}

func (r *EvaluationRepository) ListBySession(sessionID string) ([]model.Evaluation, error) {
	var evals []model.Evaluation
	err := r.DB.Where("session_id = ?", sessionID).
		Order("created_at ASC").Find(&evals).Error
	return evals, err
}

func (r *EvaluationRepository) ListByUserSince(userID uint, since time.Time) ([]model.Evaluation, error) {
	var evals []model.Evaluation
	err := r.DB.Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC").Find(&evals).Error
	return evals, err
}

func (r *EvaluationRepository) CountByUser(tx *gorm.DB, userID uint) (int64, error) {
	if tx == nil {
		tx = r.DB
	}
	var total int64
	err := tx.Model(&model.Evaluation{}).
		Where("user_id = ?", userID).Count(&total).Error
	return total, err
}

func (r *EvaluationRepository) AverageScoreByUser(userID uint) (float64, error) {
	var avg float64
	err := r.DB.Model(&model.Evaluation{}).
		Where("user_id = ?", userID).
		Select("COALESCE(AVG(total_score), 0)").Scan(&avg).Error
	return avg, err
}
