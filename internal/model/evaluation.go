package model

// MetricMap maps a competency name to its raw sub-score on the rubric scale.
type MetricMap map[string]float64

// Evaluation is the scored result of one turn. Produced at most once per
// turn and never mutated; corrections require a new row.
type Evaluation struct {
	BaseModel
	TurnID        uint      `gorm:"uniqueIndex;not null" json:"turnId"`
	SessionID     string    `gorm:"size:36;not null;index" json:"sessionId"`
	UserID        uint      `gorm:"index;not null" json:"userId"`
	ModeCode      string    `gorm:"size:50;not null" json:"modeCode"`
	Metrics       MetricMap `gorm:"serializer:json" json:"metrics"`
	TotalScore    int       `gorm:"not null" json:"totalScore"`
	RubricVersion string    `gorm:"size:50" json:"rubricVersion"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}
