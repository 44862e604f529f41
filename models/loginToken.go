package models

import "time"

// LoginToken records an issued bearer token. Logging out deletes the row,
// which revokes the token even before it expires.
type LoginToken struct {
	ID             uint      `gorm:"primaryKey"`
	Token          string    `gorm:"size:700;not null;index"`
	ExpirationTime time.Time `gorm:"not null;index"`
	UserID         uint      `gorm:"not null;index"`
	Role           Role      `gorm:"size:16"`
	CreatedAt      time.Time
}
