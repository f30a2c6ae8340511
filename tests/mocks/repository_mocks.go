package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/threadmail/internal/models"
)

// MockThreadRepository implements repository.ThreadRepository
type MockThreadRepository struct {
	mock.Mock
}

// GetByID retrieves a thread by its ID
func (m *MockThreadRepository) GetByID(ctx context.Context, id string) (*models.Thread, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Thread), args.Error(1)
}

// GetWithMessages retrieves a thread with messages and attachments
func (m *MockThreadRepository) GetWithMessages(ctx context.Context, id string) (*models.Thread, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Thread), args.Error(1)
}

// FindRecentBySubject finds the most recently active thread with a subject
func (m *MockThreadRepository) FindRecentBySubject(ctx context.Context, subject string, since time.Time) (*models.Thread, error) {
	args := m.Called(ctx, subject, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Thread), args.Error(1)
}

// ListActiveBetween lists threads by last activity
func (m *MockThreadRepository) ListActiveBetween(ctx context.Context, from, to time.Time, limit int) ([]models.Thread, error) {
	args := m.Called(ctx, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Thread), args.Error(1)
}

// AppendMessage stores a message in a thread
func (m *MockThreadRepository) AppendMessage(ctx context.Context, thread *models.Thread, isNew bool, message *models.Message) (bool, error) {
	args := m.Called(ctx, thread, isNew, message)
	return args.Bool(0), args.Error(1)
}

// MockMessageRepository implements repository.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// ExistsByMessageID reports whether a protocol identifier is stored
func (m *MockMessageRepository) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

// ThreadIDByMessageID returns the thread owning a protocol identifier
func (m *MockMessageRepository) ThreadIDByMessageID(ctx context.Context, messageID string) (string, error) {
	args := m.Called(ctx, messageID)
	return args.String(0), args.Error(1)
}

// GetByID retrieves a message by its ID
func (m *MockMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// ListByThread lists the messages of a thread
func (m *MockMessageRepository) ListByThread(ctx context.Context, threadID string) ([]models.Message, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

// MessageIDChain returns the protocol identifiers of a thread, oldest first
func (m *MockMessageRepository) MessageIDChain(ctx context.Context, threadID string) (models.MessageIDList, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.MessageIDList), args.Error(1)
}

// CountByThread counts the messages of a thread
func (m *MockMessageRepository) CountByThread(ctx context.Context, threadID string) (int64, error) {
	args := m.Called(ctx, threadID)
	return args.Get(0).(int64), args.Error(1)
}

// MockAttachmentRepository implements repository.AttachmentRepository
type MockAttachmentRepository struct {
	mock.Mock
}

// GetByID retrieves an attachment by its ID
func (m *MockAttachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// ListByMessage lists the attachments of a message
func (m *MockAttachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]models.Attachment, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// MockCursorRepository implements repository.CursorRepository
type MockCursorRepository struct {
	mock.Mock
}

// Get returns the sync cursor
func (m *MockCursorRepository) Get(ctx context.Context) (*models.SyncCursor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncCursor), args.Error(1)
}

// Advance moves the cursor forward
func (m *MockCursorRepository) Advance(ctx context.Context, uid uint32) (bool, error) {
	args := m.Called(ctx, uid)
	return args.Bool(0), args.Error(1)
}

// Touch records a sync time
func (m *MockCursorRepository) Touch(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
