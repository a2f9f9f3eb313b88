package database

import (
	"fmt"
	"log"

	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&model.User{},
		&model.Session{},
		&model.Turn{},
		&model.Evaluation{},
		&model.XPLedgerEntry{},
		&model.Streak{},
		&model.SkillMastery{},
		&model.UserBadge{},
		&model.SessionSummary{},
		&model.TeachingMode{},
		&model.Language{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	seedDefaults(db)

	return db, nil
}

// seedDefaults inserts the built-in teaching modes and languages when the
// tables are empty, so a fresh install can open sessions immediately.
func seedDefaults(db *gorm.DB) {
	var modeCount int64
	db.Model(&model.TeachingMode{}).Count(&modeCount)
	if modeCount == 0 {
		defaultModes := []model.TeachingMode{
			{
				Code:        "conversation",
				Name:        "Conversation",
				Description: "Free-form conversation practice with friendly guidance",
				Modality:    "speaking",
				Weights:     model.MetricMap{"fluency": 0.30, "vocabulary": 0.25, "grammar": 0.25, "pronunciation": 0.20},
				ScaleMin:    0, ScaleMax: 5,
				Guidelines: map[string]string{
					"fluency":       "Natural flow, few hesitations",
					"vocabulary":    "Range and appropriateness of word choice",
					"grammar":       "Accuracy of sentence structure",
					"pronunciation": "Clarity as reflected in the transcript",
				},
				RubricVersion: "v1",
				Enabled:       true,
			},
			{
				Code:        "pronunciation",
				Name:        "Pronunciation Coach",
				Description: "Focused pronunciation drills with repetition",
				Modality:    "speaking",
				Weights:     model.MetricMap{"fluency": 0.15, "vocabulary": 0.10, "grammar": 0.15, "pronunciation": 0.60},
				ScaleMin:    0, ScaleMax: 5,
				RubricVersion: "v1",
				Enabled:       true,
			},
			{
				Code:        "grammar",
				Name:        "Grammar Focus",
				Description: "Spoken drills targeting grammatical accuracy",
				Modality:    "grammar",
				Weights:     model.MetricMap{"fluency": 0.15, "vocabulary": 0.20, "grammar": 0.50, "pronunciation": 0.15},
				ScaleMin:    0, ScaleMax: 5,
				RubricVersion: "v1",
				Enabled:       true,
			},
			{
				Code:        "listening",
				Name:        "Listening Comprehension",
				Description: "Listen-and-respond comprehension exercises",
				Modality:    "listening",
				Weights:     model.MetricMap{"fluency": 0.25, "vocabulary": 0.30, "grammar": 0.25, "pronunciation": 0.20},
				ScaleMin:    0, ScaleMax: 5,
				RubricVersion: "v1",
				Enabled:       true,
			},
		}
		for _, m := range defaultModes {
			db.Create(&m)
		}
	}

	var langCount int64
	db.Model(&model.Language{}).Count(&langCount)
	if langCount == 0 {
		defaultLanguages := []model.Language{
			{Code: "english", Label: "English", Enabled: true},
			{Code: "spanish", Label: "Spanish", Enabled: true},
			{Code: "french", Label: "French", Enabled: true},
			{Code: "german", Label: "German", Enabled: true},
			{Code: "hindi", Label: "Hindi", Enabled: true},
			{Code: "mandarin", Label: "Mandarin Chinese", Enabled: true},
		}
		for _, l := range defaultLanguages {
			db.Create(&l)
		}
	}
}
