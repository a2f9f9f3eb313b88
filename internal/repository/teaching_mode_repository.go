package repository

import (
	"lingua_voice_backend/internal/model"

	"gorm.io/gorm"
)

type TeachingModeRepository struct {
	DB *gorm.DB
}

func NewTeachingModeRepository(db *gorm.DB) *TeachingModeRepository {
	return &TeachingModeRepository{DB: db}
}

func (r *TeachingModeRepository) FindByCode(code string) (*model.TeachingMode, error) {
	var mode model.TeachingMode
	err := r.DB.Where("code = ? AND enabled = ?", code, true).First(&mode).Error
	return &mode, err
}

func (r *TeachingModeRepository) ListEnabled() ([]model.TeachingMode, error) {
	var modes []model.TeachingMode
	err := r.DB.Where("enabled = ?", true).Order("code ASC").Find(&modes).Error
	return modes, err
}

type LanguageRepository struct {
	DB *gorm.DB
}

func NewLanguageRepository(db *gorm.DB) *LanguageRepository {
	return &LanguageRepository{DB: db}
}

func (r *LanguageRepository) FindByCode(code string) (*model.Language, error) {
	var lang model.Language
	err := r.DB.Where("code = ? AND enabled = ?", code, true).First(&lang).Error
	return &lang, err
}

func (r *LanguageRepository) ListEnabled() ([]model.Language, error) {
	var langs []model.Language
	err := r.DB.Where("enabled = ?", true).Order("code ASC").Find(&langs).Error
	return langs, err
}
