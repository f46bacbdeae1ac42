package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DateLayout is the calendar-day format used on the wire and in queries
const DateLayout = "2006-01-02"

// Entry is one user's journal text for one calendar day.
// At most one non-deleted entry exists per (user, date); see migration 000001.
type Entry struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID    string     `gorm:"not null;uniqueIndex:idx_entries_user_date_active,where:deleted_at IS NULL"`
	EntryDate time.Time  `gorm:"type:date;not null;uniqueIndex:idx_entries_user_date_active,where:deleted_at IS NULL"`
	RawText   string     `gorm:"type:text;not null"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"not null"`
	DeletedAt *time.Time `gorm:"index"`
}

// Date returns the entry's calendar day as YYYY-MM-DD
func (e *Entry) Date() string {
	return e.EntryDate.Format(DateLayout)
}

// Created reports whether the row was just inserted rather than updated
func (e *Entry) Created() bool {
	return e.CreatedAt.Equal(e.UpdatedAt)
}

// Enrichment is one AI-generated version of an entry's summary.
// Rows are append-only; the current enrichment is the highest version.
type Enrichment struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	EntryID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_enrichments_entry_version"`
	AIProvider string         `gorm:"column:ai_provider;not null"`
	AIModel    string         `gorm:"column:ai_model;not null"`
	AITitle    *string        `gorm:"column:ai_title"`
	AIBullets  datatypes.JSON `gorm:"column:ai_bullets;type:jsonb"`
	AICategory *string        `gorm:"column:ai_category"`
	Version    int            `gorm:"not null;uniqueIndex:idx_enrichments_entry_version"`
	CreatedAt  time.Time      `gorm:"not null"`
}

// TableName implements the GORM tabler interface.
func (Enrichment) TableName() string { return "entry_enrichments" }

// Bullets decodes the stored bullet list; malformed or empty JSON yields nil
func (e *Enrichment) Bullets() []string {
	if len(e.AIBullets) == 0 {
		return nil
	}
	var bullets []string
	if err := json.Unmarshal(e.AIBullets, &bullets); err != nil {
		return nil
	}
	return bullets
}

// Title returns the generated title or an empty string
func (e *Enrichment) Title() string {
	if e.AITitle == nil {
		return ""
	}
	return *e.AITitle
}

// Category returns the generated category or an empty string
func (e *Enrichment) Category() string {
	if e.AICategory == nil {
		return ""
	}
	return *e.AICategory
}

// EntryWithEnrichment pairs an entry with its current enrichment, if any
type EntryWithEnrichment struct {
	Entry
	Enrichment *Enrichment
}
