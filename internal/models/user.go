package models

import "time"

// User is the local record of an identity-provider account. It is written on
// login and read when resolving where to send reminder emails.
type User struct {
	ID          string `gorm:"primaryKey"` // provider user id, the stable user identifier
	Email       string `gorm:"not null;default:''"`
	Name        string `gorm:"not null;default:''"`
	Provider    string `gorm:"not null;default:''"`
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
