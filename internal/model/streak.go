package model

import "time"

// Streak tracks consecutive active days for one user. Mutated at most once
// per calendar day; LongestStreak never decreases.
type Streak struct {
	BaseModel
	UserID         uint      `gorm:"uniqueIndex;not null" json:"userId"`
	CurrentStreak  int       `gorm:"default:0" json:"currentStreak"`
	LongestStreak  int       `gorm:"default:0" json:"longestStreak"`
	LastActiveDate time.Time `gorm:"type:date" json:"lastActiveDate"`
}

func (Streak) TableName() string {
	return "streaks"
}
