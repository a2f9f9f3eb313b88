package model

import "time"

// UserBadge records a badge a user has earned; a badge key can only be
// earned once per user.
type UserBadge struct {
	BaseModel
	UserID   uint      `gorm:"not null;uniqueIndex:idx_user_badge,priority:1" json:"userId"`
	BadgeKey string    `gorm:"size:50;not null;uniqueIndex:idx_user_badge,priority:2" json:"badgeKey"`
	Title    string    `gorm:"size:100" json:"title"`
	EarnedAt time.Time `gorm:"not null" json:"earnedAt"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}
