package model

// SkillMastery is the cumulative correct-attempt ratio for one skill within
// a modality, unique per (user, modality, skill).
type SkillMastery struct {
	BaseModel
	UserID          uint   `gorm:"not null;uniqueIndex:idx_user_modality_skill,priority:1" json:"userId"`
	Modality        string `gorm:"size:30;not null;uniqueIndex:idx_user_modality_skill,priority:2" json:"modality"`
	Skill           string `gorm:"size:50;not null;uniqueIndex:idx_user_modality_skill,priority:3" json:"skill"`
	TotalAttempts   int    `gorm:"default:0" json:"totalAttempts"`
	CorrectAttempts int    `gorm:"default:0" json:"correctAttempts"`
	MasteryPct      int    `gorm:"default:0" json:"masteryPct"`
}

func (SkillMastery) TableName() string {
	return "skill_mastery"
}
