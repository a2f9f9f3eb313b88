package model

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one role-attributed utterance inside a session. Rows are
// immutable once written; TurnIndex is 0-based and dense per session.
type Turn struct {
	BaseModel
	SessionID    string   `gorm:"size:36;not null;index;uniqueIndex:idx_session_turn,priority:1" json:"sessionId"`
	TurnIndex    int      `gorm:"not null;uniqueIndex:idx_session_turn,priority:2" json:"turnIndex"`
	Role         TurnRole `gorm:"size:20;not null" json:"role"`
	Text         string   `gorm:"type:text" json:"text"`
	AudioStartMs *int64   `json:"audioStartMs,omitempty"`
	AudioEndMs   *int64   `json:"audioEndMs,omitempty"`
}

func (Turn) TableName() string {
	return "turns"
}
