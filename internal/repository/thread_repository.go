package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/threadmail/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errDuplicateMessage aborts the append transaction when the protocol
// message identifier is already stored
var errDuplicateMessage = errors.New("message already stored")

// ThreadRepository defines the interface for thread data access
type ThreadRepository interface {
	GetByID(ctx context.Context, id string) (*models.Thread, error)
	GetWithMessages(ctx context.Context, id string) (*models.Thread, error)
	FindRecentBySubject(ctx context.Context, subject string, since time.Time) (*models.Thread, error)
	ListActiveBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Thread, error)
	AppendMessage(ctx context.Context, thread *models.Thread, isNew bool, message *models.Message) (bool, error)
}

// threadRepository implements ThreadRepository using GORM
type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new ThreadRepository instance
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

// GetByID retrieves a thread by its ID
func (r *threadRepository) GetByID(ctx context.Context, id string) (*models.Thread, error) {
	var thread models.Thread
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&thread)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get thread by ID: %w", result.Error)
	}
	return &thread, nil
}

// GetWithMessages retrieves a thread with its messages and their attachments
func (r *threadRepository) GetWithMessages(ctx context.Context, id string) (*models.Thread, error) {
	var thread models.Thread
	result := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order(chronological)
		}).
		Preload("Messages.Attachments").
		Where("id = ?", id).
		First(&thread)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get thread by ID: %w", result.Error)
	}
	return &thread, nil
}

// FindRecentBySubject finds the thread whose stored subject equals subject
// exactly and whose last message is not older than since. When several
// match, the most recently active one wins.
func (r *threadRepository) FindRecentBySubject(ctx context.Context, subject string, since time.Time) (*models.Thread, error) {
	var thread models.Thread
	result := r.db.WithContext(ctx).
		Where("subject = ? AND last_message_at >= ?", subject, since.UTC()).
		Order("last_message_at DESC").
		First(&thread)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find thread by subject: %w", result.Error)
	}
	return &thread, nil
}

// ListActiveBetween lists threads whose last message falls in [from, to],
// most recently active first. A zero to means "up to now".
func (r *threadRepository) ListActiveBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Thread, error) {
	query := r.db.WithContext(ctx).Where("last_message_at >= ?", from.UTC())
	if !to.IsZero() {
		query = query.Where("last_message_at <= ?", to.UTC())
	}

	var threads []models.Thread
	result := query.Order("last_message_at DESC").Limit(limit).Find(&threads)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list threads: %w", result.Error)
	}
	return threads, nil
}

// AppendMessage stores message in thread inside one transaction. A new
// thread is created first when isNew is set. Inserting a message whose
// protocol identifier already exists is a silent no-op: nothing is written
// and (false, nil) is returned. After an insert the thread statistics are
// recomputed from the stored rows, and a counterparty-authored message
// forces the thread open.
func (r *threadRepository) AppendMessage(ctx context.Context, thread *models.Thread, isNew bool, message *models.Message) (bool, error) {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if isNew {
			thread.MessageCount = 1
			thread.LastMessageAt = message.CreatedAt
			if err := tx.Create(thread).Error; err != nil {
				return fmt.Errorf("failed to create thread: %w", err)
			}
		}

		message.ThreadID = thread.ID
		result := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "message_id"}},
				DoNothing: true,
			}).
			Create(message)
		if result.Error != nil {
			if isDuplicateKeyError(result.Error) {
				return errDuplicateMessage
			}
			return fmt.Errorf("failed to create message: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errDuplicateMessage
		}

		for i := range message.Attachments {
			message.Attachments[i].MessageID = message.ID
			if err := tx.Create(&message.Attachments[i]).Error; err != nil {
				return fmt.Errorf("failed to create attachment: %w", err)
			}
		}

		return refreshThreadStats(tx, thread, !message.FromOperator)
	})
	if errors.Is(err, errDuplicateMessage) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// refreshThreadStats recounts the messages of thread and recomputes its
// last activity from the stored rows rather than incrementing, so retries
// and duplicates cannot skew the numbers.
func refreshThreadStats(tx *gorm.DB, thread *models.Thread, reopen bool) error {
	var count int64
	if err := tx.Model(&models.Message{}).Where("thread_id = ?", thread.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count thread messages: %w", err)
	}

	var latest models.Message
	if err := tx.Select("id", "created_at").
		Where("thread_id = ?", thread.ID).
		Order("created_at DESC, stored_at DESC").
		First(&latest).Error; err != nil {
		return fmt.Errorf("failed to load latest thread message: %w", err)
	}

	updates := map[string]interface{}{
		"message_count":   count,
		"last_message_at": latest.CreatedAt.UTC(),
		"updated_at":      time.Now().UTC(),
	}
	if reopen {
		updates["status"] = models.ThreadStatusOpen
	}

	if err := tx.Model(&models.Thread{}).Where("id = ?", thread.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update thread stats: %w", err)
	}

	thread.MessageCount = count
	thread.LastMessageAt = latest.CreatedAt.UTC()
	if reopen {
		thread.Status = models.ThreadStatusOpen
	}
	return nil
}
