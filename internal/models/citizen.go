package models

import "time"

// Citizen is the per-phone aggregate record, upserted on every submission.
type Citizen struct {
	Phone           string `gorm:"primaryKey;size:32"`
	Name            string `gorm:"size:128;default:Anonymous User"`
	Language        string `gorm:"size:4"`
	WardID          int
	TotalReports    int  `gorm:"default:0"`
	ResolvedReports int  `gorm:"default:0"`
	Blocked         bool `gorm:"default:false"`
	LastActive      time.Time
	CreatedAt       time.Time
}

// Operator is a dashboard login: an admin or a ward officer. Wards holds a
// JSON array of ward numbers the operator may act on; empty means all wards.
type Operator struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"size:64;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:128;not null"`
	DisplayName  string `gorm:"size:128"`
	Role         string `gorm:"size:24;default:ward_officer"` // "admin" or "ward_officer"
	Wards        string `gorm:"type:json"`
	CreatedAt    time.Time
}
