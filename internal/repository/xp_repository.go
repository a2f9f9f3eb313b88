package repository

import (
	"time"

	"lingua_voice_backend/internal/model"

	"gorm.io/gorm"
)

type XPRepository struct {
	DB *gorm.DB
}

func NewXPRepository(db *gorm.DB) *XPRepository {
	return &XPRepository{DB: db}
}

func (r *XPRepository) Create(tx *gorm.DB, entry *model.XPLedgerEntry) error {
	if tx == nil {
		tx = r.DB
	}
	return tx.Create(entry).Error
}

func (r *XPRepository) CreateBatch(tx *gorm.DB, entries []model.XPLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.DB
	}
	return tx.Create(&entries).Error
}

func (r *XPRepository) TotalByUser(userID uint) (int64, error) {
	var total int64
	err := r.DB.Model(&model.XPLedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}

func (r *XPRepository) TotalByUserBetween(userID uint, from, to time.Time) (int64, error) {
	var total int64
	err := r.DB.Model(&model.XPLedgerEntry{}).
		Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, from, to).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}

func (r *XPRepository) ListByUser(userID uint, page, limit int) ([]model.XPLedgerEntry, int64, error) {
	var entries []model.XPLedgerEntry
	var total int64

	query := r.DB.Model(&model.XPLedgerEntry{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("occurred_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&entries).Error
	return entries, total, err
}
