package model

import "time"

// Task status values as persisted.
const (
	TaskStatusCompleted  = "completed"
	TaskStatusFallback   = "fallback"
	TaskStatusFailed     = "failed"
	TaskStatusSuperseded = "superseded"
)

// MappingTask represents one mapping run over an uploaded point list.
type MappingTask struct {
	TaskID  string `gorm:"primaryKey;size:64"`
	Status  string `gorm:"size:32;not null;index"`
	Source  string `gorm:"size:32;not null"`
	Message string `gorm:"size:1024"`

	// Batch progress as last observed from the remote service.
	TotalBatches     int
	CompletedBatches int
	Progress         float64

	// Aggregate statistics over the task's mappings.
	Total           int
	Mapped          int
	Errors          int
	DeviceCount     int
	DeviceTypeCount int

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Records []MappingRecord `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}
