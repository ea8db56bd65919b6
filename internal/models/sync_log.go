package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncLog struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	SyncType    SyncType   `json:"syncType" gorm:"not null;index"`
	Status      SyncStatus `json:"status" gorm:"not null;index"`
	ItemsSynced int        `json:"itemsSynced"`
	Errors      *string    `json:"errors,omitempty" gorm:"type:text"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type SyncType string

const (
	SyncTypeFull      SyncType = "full"
	SyncTypeInventory SyncType = "inventory"
)

// ParseSyncType maps the trigger's type parameter: empty or "full" is a full
// sync, anything else is inventory-only.
func ParseSyncType(s string) SyncType {
	if s == "" || s == string(SyncTypeFull) {
		return SyncTypeFull
	}
	return SyncTypeInventory
}

type SyncStatus string

const (
	SyncStatusStarted   SyncStatus = "started"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

func (s *SyncLog) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
