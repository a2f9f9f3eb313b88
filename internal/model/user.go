package model

import "time"

// User is the learner account. Accounts are created lazily the first time
// an external identity opens a voice session.
type User struct {
	BaseModel
	ExternalID string     `gorm:"size:191;uniqueIndex;not null" json:"externalId"`
	Name       string     `gorm:"size:100" json:"name"`
	Email      string     `gorm:"size:191;index" json:"email"`
	Password   string     `gorm:"size:255" json:"-"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
}

func (User) TableName() string {
	return "users"
}
