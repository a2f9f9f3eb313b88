package model

import "time"

type SessionState string

const (
	SessionOpening SessionState = "opening"
	SessionActive  SessionState = "active"
	SessionClosing SessionState = "closing"
	SessionClosed  SessionState = "closed"
	SessionExpired SessionState = "expired"
)

// CanTransition reports whether moving to next is a legal one-directional
// state change. closed and expired are terminal.
func (s SessionState) CanTransition(next SessionState) bool {
	switch s {
	case SessionOpening:
		return next == SessionActive || next == SessionClosing || next == SessionExpired
	case SessionActive:
		return next == SessionClosing || next == SessionExpired
	case SessionClosing:
		return next == SessionClosed
	default:
		return false
	}
}

func (s SessionState) Terminal() bool {
	return s == SessionClosed || s == SessionExpired
}

// Session is one voice learning session. TurnCount is the dense turn
// sequence counter; it only advances after the corresponding turn row is
// durably written.
type Session struct {
	UUIDBase
	UserID         uint         `gorm:"index;not null" json:"userId"`
	ModeCode       string       `gorm:"size:50;not null" json:"modeCode"`
	LanguageCode   string       `gorm:"size:20;not null" json:"languageCode"`
	MotherLanguage string       `gorm:"size:20" json:"motherLanguage"`
	State          SessionState `gorm:"size:20;not null;default:opening;index" json:"state"`
	RubricVersion  string       `gorm:"size:50" json:"rubricVersion"`
	StartedAt      time.Time    `gorm:"not null" json:"startedAt"`
	ClosedAt       *time.Time   `json:"closedAt,omitempty"`
	TurnCount      int          `gorm:"default:0" json:"turnCount"`
	DroppedFrames  int64        `gorm:"default:0" json:"droppedFrames"`
}

func (Session) TableName() string {
	return "sessions"
}
