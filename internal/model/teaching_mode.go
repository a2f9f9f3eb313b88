package model

// TeachingMode is immutable scoring configuration for one teaching mode.
// The rubric columns (weights, scale, guidelines) are resolved once at
// session open and pinned for the session's lifetime.
type TeachingMode struct {
	BaseModel
	Code          string            `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name          string            `gorm:"size:100;not null" json:"name"`
	Description   string            `gorm:"size:500" json:"description"`
	Modality      string            `gorm:"size:30;not null;default:speaking" json:"modality"`
	Weights       MetricMap         `gorm:"serializer:json" json:"weights"`
	ScaleMin      float64           `gorm:"default:0" json:"scaleMin"`
	ScaleMax      float64           `gorm:"default:5" json:"scaleMax"`
	Guidelines    map[string]string `gorm:"serializer:json" json:"guidelines"`
	RubricVersion string            `gorm:"size:50;not null;default:v1" json:"rubricVersion"`
	Enabled       bool              `gorm:"default:true" json:"enabled"`
}

func (TeachingMode) TableName() string {
	return "teaching_modes"
}

// Language is a supported mother or target language.
type Language struct {
	BaseModel
	Code    string `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Label   string `gorm:"size:100;not null" json:"label"`
	Enabled bool   `gorm:"default:true" json:"enabled"`
}

func (Language) TableName() string {
	return "languages"
}
