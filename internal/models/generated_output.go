package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Generated output types
const (
	OutputTypeReview = "review"
	OutputTypeResume = "resume"
)

// GeneratedOutput is a persisted multi-entry AI report. Never mutated after creation.
type GeneratedOutput struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID         string         `gorm:"not null;index"`
	Type           string         `gorm:"not null"`
	RangeStart     time.Time      `gorm:"type:date;not null"`
	RangeEnd       time.Time      `gorm:"type:date;not null"`
	OutputMarkdown string         `gorm:"type:text;not null"`
	InputSnapshot  datatypes.JSON `gorm:"type:jsonb"`
	AIProvider     string         `gorm:"column:ai_provider;not null;default:''"`
	AIModel        string         `gorm:"column:ai_model;not null;default:''"`
	CreatedAt      time.Time      `gorm:"not null"`
}
