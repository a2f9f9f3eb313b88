package model

import "time"

type XPSource string

const (
	XPSourceSession       XPSource = "session"
	XPSourceBadge         XPSource = "badge"
	XPSourceStreakBonus   XPSource = "streak_bonus"
	XPSourceAccuracyBonus XPSource = "accuracy_bonus"
	XPSourcePerfectScore  XPSource = "perfect_score_bonus"
	XPSourceSpeedBonus    XPSource = "speed_bonus"
	XPSourceFirstSession  XPSource = "first_session_bonus"
	XPSourcePerfectDay    XPSource = "perfect_day_bonus"
)

// XPLedgerEntry is an append-only XP award. Total XP for a user is the sum
// of their entries; corrections are compensating entries, never updates.
type XPLedgerEntry struct {
	BaseModel
	UserID     uint      `gorm:"index;not null" json:"userId"`
	Amount     int       `gorm:"not null" json:"amount"`
	Source     XPSource  `gorm:"size:40;not null" json:"source"`
	SessionID  *string   `gorm:"size:36;index" json:"sessionId,omitempty"`
	OccurredAt time.Time `gorm:"not null;index" json:"occurredAt"`
}

func (XPLedgerEntry) TableName() string {
	return "xp_ledger"
}
