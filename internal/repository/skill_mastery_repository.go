package repository

import (
	"math"

	"lingua_voice_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SkillMasteryRepository struct {
	DB *gorm.DB
}

func NewSkillMasteryRepository(db *gorm.DB) *SkillMasteryRepository {
	return &SkillMasteryRepository{DB: db}
}

// Upsert adds attempt counts onto the per-skill row, creating it on first use.
func (r *SkillMasteryRepository) Upsert(tx *gorm.DB, userID uint, modality, skill string, attempts, correct int) error {
	if tx == nil {
		tx = r.DB
	}

	row := model.SkillMastery{
		UserID:          userID,
		Modality:        modality,
		Skill:           skill,
		TotalAttempts:   attempts,
		CorrectAttempts: correct,
	}
	row.MasteryPct = masteryPct(row.CorrectAttempts, row.TotalAttempts)

	// clause.Set keeps the assignment order fixed: MySQL evaluates SET
	// left to right, so mastery_pct must come after both counters and
	// reads their already-incremented values.
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "modality"}, {Name: "skill"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "total_attempts"}, Value: gorm.Expr("total_attempts + ?", attempts)},
			{Column: clause.Column{Name: "correct_attempts"}, Value: gorm.Expr("correct_attempts + ?", correct)},
			{Column: clause.Column{Name: "mastery_pct"}, Value: gorm.Expr("ROUND(correct_attempts * 100.0 / total_attempts)")},
		},
	}).Create(&row).Error
}

func (r *SkillMasteryRepository) ListByUser(userID uint) ([]model.SkillMastery, error) {
	var rows []model.SkillMastery
	err := r.DB.Where("user_id = ?", userID).
		Order("modality ASC, skill ASC").Find(&rows).Error
	return rows, err
}

func masteryPct(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) * 100 / float64(total)))
}
