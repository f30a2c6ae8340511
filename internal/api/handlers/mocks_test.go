package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/threadmail/internal/mailsync"
	"github.com/welldanyogia/threadmail/internal/outbound"
)

// MockSender is a mock implementation of Sender
type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendReply(ctx context.Context, threadID string, req outbound.Request) (string, error) {
	args := m.Called(ctx, threadID, req)
	return args.String(0), args.Error(1)
}

func (m *MockSender) CreateThreadAndSend(ctx context.Context, req outbound.Request) (string, string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.String(1), args.Error(2)
}

// MockSyncer is a mock implementation of Syncer
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) SyncInbox(ctx context.Context) (mailsync.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(mailsync.Result), args.Error(1)
}
