package models

import (
	"time"
)

// SyncCursorID is the primary key of the singleton cursor row
const SyncCursorID uint = 1

// SyncCursor is the high-water mark of the last processed mailbox UID.
// LastUID only ever increases; Version is bumped on every advance.
type SyncCursor struct {
	ID           uint       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	LastUID      uint32     `gorm:"not null;default:0" json:"last_uid"`
	Version      int64      `gorm:"not null;default:0" json:"version"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for SyncCursor
func (SyncCursor) TableName() string {
	return "sync_cursors"
}
