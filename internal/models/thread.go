package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ThreadStatus is the lifecycle state of a conversation
type ThreadStatus string

const (
	ThreadStatusOpen   ThreadStatus = "open"
	ThreadStatusClosed ThreadStatus = "closed"
)

// Thread represents a conversation with a single counterparty
type Thread struct {
	ID                string       `gorm:"primaryKey;size:36" json:"id"`
	Subject           string       `gorm:"not null;index:idx_threads_subject_last" json:"subject"`
	Status            ThreadStatus `gorm:"not null;size:16;default:open" json:"status"`
	CounterpartyName  string       `gorm:"size:255" json:"counterparty_name"`
	CounterpartyEmail string       `gorm:"not null;size:255;index" json:"counterparty_email"`
	LastMessageAt     time.Time    `gorm:"not null;index:idx_threads_subject_last" json:"last_message_at"`
	MessageCount      int64        `gorm:"not null;default:0" json:"message_count"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Messages []Message `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName returns the table name for Thread
func (Thread) TableName() string {
	return "threads"
}

// BeforeCreate assigns an opaque identifier when none was set
func (t *Thread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = ThreadStatusOpen
	}
	t.LastMessageAt = t.LastMessageAt.UTC()
	return nil
}
