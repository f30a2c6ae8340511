package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/threadmail/internal/models"
	"gorm.io/gorm"
)

// MessageRepositoryTestSuite is the test suite for MessageRepository
type MessageRepositoryTestSuite struct {
	suite.Suite
	db          *gorm.DB
	repo        MessageRepository
	threads     ThreadRepository
	attachments AttachmentRepository
	thread      *models.Thread
	base        time.Time
}

// SetupSuite runs once before all tests
func (s *MessageRepositoryTestSuite) SetupSuite() {
	s.db = openTestDB(s.T())
	s.repo = NewMessageRepository(s.db)
	s.threads = NewThreadRepository(s.db)
	s.attachments = NewAttachmentRepository(s.db)
	s.base = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
}

// TearDownSuite runs once after all tests
func (s *MessageRepositoryTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SetupTest runs before each test - clean up data and create a thread with two messages
func (s *MessageRepositoryTestSuite) SetupTest() {
	resetTables(s.db)

	s.thread = &models.Thread{Subject: "Refund", CounterpartyEmail: "c@example.com"}
	first := &models.Message{
		MessageID: "m1@x",
		FromEmail: "c@example.com",
		Subject:   "Refund",
		CreatedAt: s.base,
		Attachments: []models.Attachment{
			{Filename: "receipt.pdf", ContentType: "application/pdf", SizeBytes: 10},
		},
	}
	_, err := s.threads.AppendMessage(context.Background(), s.thread, true, first)
	require.NoError(s.T(), err)

	reply := &models.Message{
		MessageID:    "m2@x",
		InReplyTo:    strPtr("m1@x"),
		References:   models.MessageIDList{"m1@x"},
		FromEmail:    "support@shop.example",
		Subject:      "Re: Refund",
		FromOperator: true,
		CreatedAt:    s.base.Add(time.Hour),
	}
	_, err = s.threads.AppendMessage(context.Background(), s.thread, false, reply)
	require.NoError(s.T(), err)
}

// TestMessageRepositoryTestSuite runs the test suite
func TestMessageRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(MessageRepositoryTestSuite))
}

func strPtr(s string) *string {
	return &s
}

func (s *MessageRepositoryTestSuite) TestExistsByMessageID() {
	exists, err := s.repo.ExistsByMessageID(context.Background(), "m1@x")
	require.NoError(s.T(), err)
	assert.True(s.T(), exists)

	exists, err = s.repo.ExistsByMessageID(context.Background(), "unknown@x")
	require.NoError(s.T(), err)
	assert.False(s.T(), exists)
}

func (s *MessageRepositoryTestSuite) TestThreadIDByMessageID() {
	threadID, err := s.repo.ThreadIDByMessageID(context.Background(), "m2@x")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.thread.ID, threadID)

	_, err = s.repo.ThreadIDByMessageID(context.Background(), "unknown@x")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *MessageRepositoryTestSuite) TestMessageIDChain_OldestFirst() {
	chain, err := s.repo.MessageIDChain(context.Background(), s.thread.ID)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.MessageIDList{"m1@x", "m2@x"}, chain)
}

func (s *MessageRepositoryTestSuite) TestMessageIDChain_SameSecondKeepsInsertionOrder() {
	at := s.base.Add(2 * time.Hour)
	inbound := &models.Message{
		ID:        "ffffffff-0000-0000-0000-000000000000",
		MessageID: "m3@x",
		FromEmail: "c@example.com",
		Subject:   "Re: Refund",
		CreatedAt: at,
	}
	_, err := s.threads.AppendMessage(context.Background(), s.thread, false, inbound)
	require.NoError(s.T(), err)

	reply := &models.Message{
		ID:           "00000000-0000-0000-0000-000000000000",
		MessageID:    "m4@x",
		FromEmail:    "support@shop.example",
		Subject:      "Re: Refund",
		FromOperator: true,
		CreatedAt:    at,
	}
	_, err = s.threads.AppendMessage(context.Background(), s.thread, false, reply)
	require.NoError(s.T(), err)

	chain, err := s.repo.MessageIDChain(context.Background(), s.thread.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.MessageIDList{"m1@x", "m2@x", "m3@x", "m4@x"}, chain)
	assert.Equal(s.T(), "m4@x", chain.Last())

	messages, err := s.repo.ListByThread(context.Background(), s.thread.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), messages, 4)
	assert.Equal(s.T(), "m3@x", messages[2].MessageID)
	assert.Equal(s.T(), "m4@x", messages[3].MessageID)
}

func (s *MessageRepositoryTestSuite) TestListByThread_RoundTripsReferences() {
	messages, err := s.repo.ListByThread(context.Background(), s.thread.ID)

	require.NoError(s.T(), err)
	require.Len(s.T(), messages, 2)
	assert.Len(s.T(), messages[0].Attachments, 1)
	assert.Equal(s.T(), models.MessageIDList{"m1@x"}, messages[1].References)
	require.NotNil(s.T(), messages[1].InReplyTo)
	assert.Equal(s.T(), "m1@x", *messages[1].InReplyTo)
	assert.True(s.T(), messages[1].FromOperator)
}

func (s *MessageRepositoryTestSuite) TestGetByID() {
	messages, err := s.repo.ListByThread(context.Background(), s.thread.ID)
	require.NoError(s.T(), err)

	found, err := s.repo.GetByID(context.Background(), messages[0].ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "m1@x", found.MessageID)

	_, err = s.repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *MessageRepositoryTestSuite) TestCountByThread() {
	count, err := s.repo.CountByThread(context.Background(), s.thread.ID)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), count)
}

func (s *MessageRepositoryTestSuite) TestAttachments_ListAndGet() {
	messages, err := s.repo.ListByThread(context.Background(), s.thread.ID)
	require.NoError(s.T(), err)

	list, err := s.attachments.ListByMessage(context.Background(), messages[0].ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 1)

	got, err := s.attachments.GetByID(context.Background(), list[0].ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "receipt.pdf", got.Filename)

	_, err = s.attachments.GetByID(context.Background(), 99999)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}
