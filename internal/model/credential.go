package model

import "time"

// Credential is the persisted auth token. Only one row (ID 1) is ever used.
type Credential struct {
	ID        int64  `gorm:"primaryKey"`
	Token     string `gorm:"not null"`
	UpdatedAt time.Time
}
