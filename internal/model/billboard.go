package model

import "time"

// ActiveBillboard is the durable copy of the single active billboard. There
// is at most one row, with ID ActiveBillboardID.
type ActiveBillboard struct {
	ID            uint      `gorm:"primaryKey;autoIncrement:false"`
	EventID       string    `gorm:"size:64;not null"`
	EventName     string    `gorm:"size:256;not null"`
	EventDate     string    `gorm:"size:10;not null"`
	SecurityCodes []string  `gorm:"serializer:json;not null"`
	CreatedByID   string    `gorm:"size:128"`
	CreatedByName string    `gorm:"size:256"`
	LastUpdated   time.Time `gorm:"not null"`
}

// ActiveBillboardID is the primary key of the only ActiveBillboard row.
const ActiveBillboardID uint = 1

// BillboardAudit records one mutation of the active billboard.
type BillboardAudit struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Action    string    `gorm:"size:32;not null"`
	ActorID   string    `gorm:"size:128"`
	ActorName string    `gorm:"size:256"`
	EventID   string    `gorm:"size:64"`
	EventDate string    `gorm:"size:10"`
	CodeCount int       `gorm:"not null"`
	At        time.Time `gorm:"not null;index"`
}
