package model

import "time"

// MappingRecord is one point's mapping within a task. The raw upload fields
// are stored alongside the result so an improvement run can re-submit the
// original points without keeping the upload around.
type MappingRecord struct {
	ID     int64  `gorm:"primaryKey"`
	TaskID string `gorm:"size:64;index;not null"`

	// Raw upload fields.
	RawPointID   string `gorm:"size:128;index;not null"`
	RawPointName string `gorm:"size:256;not null"`
	PointType    string `gorm:"size:64"`
	Unit         string `gorm:"size:64"`
	DeviceType   string `gorm:"size:64"`
	DeviceID     string `gorm:"size:128"`

	// Mapping result.
	DeviceClass    string `gorm:"size:32;not null"`
	DeviceInstance string `gorm:"size:128"`
	Category       string `gorm:"size:128"`
	SchemaPath     string `gorm:"size:256"`
	Confidence     float64
	Source         string `gorm:"size:32;not null"`
	Status         string `gorm:"size:32;not null"`
	Issues         string `gorm:"size:512"`

	// Superseded marks rows replaced by a later improvement run.
	Superseded bool `gorm:"index;not null;default:false"`

	CreatedAt time.Time
}
