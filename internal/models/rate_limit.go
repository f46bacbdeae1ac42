package models

import "time"

// RateLimitWindow counts requests for one (user, key) in one fixed window
type RateLimitWindow struct {
	UserID      string    `gorm:"primaryKey"`
	Key         string    `gorm:"primaryKey"`
	WindowStart time.Time `gorm:"primaryKey"`
	Count       int       `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName implements the GORM tabler interface.
func (RateLimitWindow) TableName() string { return "rate_limits" }
