package models

// Attachment represents a file attached to an email message. URL is the
// retrievable reference handed out by blob storage.
type Attachment struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	MessageID   string `gorm:"not null;size:36;index" json:"message_id"`
	Filename    string `gorm:"size:255" json:"filename"`
	ContentType string `gorm:"size:100" json:"content_type"`
	StoragePath string `gorm:"size:500" json:"-"`
	URL         string `gorm:"size:1000" json:"url"`
	SizeBytes   int64  `json:"size_bytes"`
}

// TableName returns the table name for Attachment
func (Attachment) TableName() string {
	return "attachments"
}
