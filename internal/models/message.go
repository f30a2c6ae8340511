package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message represents one email belonging to a thread. Messages are immutable
// once stored; MessageID is the deduplication key.
type Message struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	ThreadID     string        `gorm:"not null;size:36;index" json:"thread_id"`
	MessageID    string        `gorm:"uniqueIndex;not null;size:998" json:"message_id"`
	InReplyTo    *string       `gorm:"size:998;index" json:"in_reply_to,omitempty"`
	References   MessageIDList `gorm:"type:text" json:"references"`
	FromEmail    string        `gorm:"not null;size:255" json:"from_email"`
	FromName     string        `gorm:"size:255" json:"from_name,omitempty"`
	ToEmail      string        `gorm:"size:255" json:"to_email"`
	Subject      string        `json:"subject"`
	BodyText     string        `json:"body_text,omitempty"`
	BodyHTML     string        `json:"body_html,omitempty"`
	FromOperator bool          `gorm:"not null;default:false" json:"from_operator"`
	SourceUID    *uint32       `json:"source_uid,omitempty"`
	CreatedAt    time.Time     `gorm:"not null;index" json:"created_at"`
	// StoredAt orders messages sharing a CreatedAt by insertion
	StoredAt time.Time `json:"-"`

	// Relationships
	Attachments []Attachment `gorm:"foreignKey:MessageID;references:ID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns an opaque identifier when none was set and stores
// the dates in UTC so that ordering by created_at is consistent across drivers.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if m.StoredAt.IsZero() {
		m.StoredAt = time.Now().UTC()
	}
	return nil
}
