package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/threadmail/internal/models"
	"gorm.io/gorm"
)

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	ExistsByMessageID(ctx context.Context, messageID string) (bool, error)
	ThreadIDByMessageID(ctx context.Context, messageID string) (string, error)
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByThread(ctx context.Context, threadID string) ([]models.Message, error)
	MessageIDChain(ctx context.Context, threadID string) (models.MessageIDList, error)
	CountByThread(ctx context.Context, threadID string) (int64, error)
}

// messageRepository implements MessageRepository using GORM
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository instance
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// ExistsByMessageID reports whether a message with the protocol identifier is stored
func (r *messageRepository) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Message{}).Where("message_id = ?", messageID).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to look up message: %w", result.Error)
	}
	return count > 0, nil
}

// ThreadIDByMessageID returns the owning thread of the message with the protocol identifier
func (r *messageRepository) ThreadIDByMessageID(ctx context.Context, messageID string) (string, error) {
	var message models.Message
	result := r.db.WithContext(ctx).Select("id", "thread_id").Where("message_id = ?", messageID).First(&message)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to look up message thread: %w", result.Error)
	}
	return message.ThreadID, nil
}

// GetByID retrieves a message by its ID with preloaded attachments
func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	result := r.db.WithContext(ctx).Preload("Attachments").Where("id = ?", id).First(&message)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", result.Error)
	}
	return &message, nil
}

// chronological orders messages by date, then by insertion for equal dates
const chronological = "created_at ASC, stored_at ASC"

// ListByThread retrieves all messages of a thread in chronological order
func (r *messageRepository) ListByThread(ctx context.Context, threadID string) ([]models.Message, error) {
	var messages []models.Message
	result := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("thread_id = ?", threadID).
		Order(chronological).
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list messages: %w", result.Error)
	}
	return messages, nil
}

// MessageIDChain returns the protocol identifiers of a thread, oldest first
func (r *messageRepository) MessageIDChain(ctx context.Context, threadID string) (models.MessageIDList, error) {
	var ids []string
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("thread_id = ?", threadID).
		Order(chronological).
		Pluck("message_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load message id chain: %w", result.Error)
	}
	return models.MessageIDList(ids), nil
}

// CountByThread counts the messages belonging to a thread
func (r *messageRepository) CountByThread(ctx context.Context, threadID string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Message{}).Where("thread_id = ?", threadID).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count messages: %w", result.Error)
	}
	return count, nil
}
