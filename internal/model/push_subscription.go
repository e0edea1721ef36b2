package model

import "time"

// PushSubscription holds the information for a volunteer's browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Locations []SubscriptionLocation `gorm:"foreignKey:SubscriptionEndpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
}

// SubscriptionLocation maps a subscription to a directory location id.
type SubscriptionLocation struct {
	SubscriptionEndpoint string `gorm:"primaryKey"`
	LocationID           string `gorm:"primaryKey;size:64;index"`
}
