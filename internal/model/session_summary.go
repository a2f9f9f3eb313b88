package model

// XPBreakdown itemizes the XP awarded for one session, one field per bonus
// component. Each non-zero component corresponds to one ledger entry.
type XPBreakdown struct {
	Base            int `json:"base"`
	AccuracyBonus   int `json:"accuracyBonus"`
	SpeedBonus      int `json:"speedBonus"`
	StreakBonus     int `json:"streakBonus"`
	PerfectScore    int `json:"perfectScoreBonus"`
	FirstOfDay      int `json:"firstOfDayBonus"`
	PerfectDayBonus int `json:"perfectDayBonus"`
	BadgeXP         int `json:"badgeXp"`
	Total           int `json:"total"`
}

// SummaryData is the immutable session wrap-up delivered with the
// session_ended event and reachable afterwards via the summary endpoint.
type SummaryData struct {
	TotalTurns      int                `json:"totalTurns"`
	ScoredTurns     int                `json:"scoredTurns"`
	UnscoredTurns   int                `json:"unscoredTurns"`
	CorrectTurns    int                `json:"correctTurns"`
	AccuracyPct     int                `json:"accuracyPct"`
	AverageScore    float64            `json:"averageScore"`
	MetricAverages  map[string]float64 `json:"metricAverages"`
	ScoreTrend      string             `json:"scoreTrend"`
	Strengths       []string           `json:"strengths"`
	Improvements    []string           `json:"improvements"`
	XP              XPBreakdown        `json:"xp"`
	BadgesAwarded   []string           `json:"badgesAwarded"`
	CurrentStreak   int                `json:"currentStreak"`
	LongestStreak   int                `json:"longestStreak"`
	StreakExtended  bool               `json:"streakExtended"`
	DurationSeconds int                `json:"durationSeconds"`
	DroppedFrames   int64              `json:"droppedFrames"`
	AudioObject     string             `json:"audioObject,omitempty"`
}

// SessionSummary persists one SummaryData per closed session. The unique
// session index doubles as the ledger idempotency key.
type SessionSummary struct {
	BaseModel
	SessionID string      `gorm:"size:36;uniqueIndex;not null" json:"sessionId"`
	UserID    uint        `gorm:"index;not null" json:"userId"`
	Summary   SummaryData `gorm:"serializer:json" json:"summary"`
}

func (SessionSummary) TableName() string {
	return "session_summaries"
}
