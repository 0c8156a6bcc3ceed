package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// UserID binds it to the companion's signed-in user so invitation pushes are not
// delivered to a previous account on the same machine.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	UserID    int64     `gorm:"index"`
	CreatedAt time.Time `gorm:"not null"`
}
