package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/welldanyogia/threadmail/internal/errors"
	"github.com/welldanyogia/threadmail/internal/mailparse"
	"github.com/welldanyogia/threadmail/internal/models"
	"github.com/welldanyogia/threadmail/internal/repository"
	"github.com/welldanyogia/threadmail/internal/threading"
)

// Service sends operator messages and records them once they are accepted
// by the submission server. Nothing is stored for a message that could not
// be sent.
type Service struct {
	composer  *Composer
	transport Transport
	threads   repository.ThreadRepository
	messages  repository.MessageRepository
	logger    *slog.Logger
}

// NewService creates a new outbound service
func NewService(
	composer *Composer,
	transport Transport,
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		composer:  composer,
		transport: transport,
		threads:   threads,
		messages:  messages,
		logger:    logger,
	}
}

// SendReply answers the thread and returns the identifier of the sent
// message. The recipient defaults to the thread counterparty and the
// subject to "Re: <thread subject>". The thread status is left unchanged.
func (s *Service) SendReply(ctx context.Context, threadID string, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.ErrThreadNotFound
		}
		return "", err
	}

	if req.To == "" {
		req.To = thread.CounterpartyEmail
		if req.ToName == "" && thread.CounterpartyName != thread.CounterpartyEmail {
			req.ToName = thread.CounterpartyName
		}
	}
	if req.To == "" {
		return "", fmt.Errorf("%w: thread has no counterparty address", apperrors.ErrInvalidInput)
	}
	if req.Subject == "" {
		req.Subject = ReplyPrefix + thread.Subject
	}

	chain, err := s.messages.MessageIDChain(ctx, thread.ID)
	if err != nil {
		return "", err
	}

	composed, err := s.send(ctx, req, chain)
	if err != nil {
		return "", err
	}

	if err := s.record(ctx, thread, false, composed); err != nil {
		return "", err
	}
	return composed.MessageID, nil
}

// CreateThreadAndSend starts a new open conversation with req.To and
// returns the new thread and message identifiers
func (s *Service) CreateThreadAndSend(ctx context.Context, req Request) (string, string, error) {
	if err := req.Validate(); err != nil {
		return "", "", err
	}
	if req.To == "" {
		return "", "", apperrors.NewAppError(apperrors.ErrInvalidInput, "recipient address is required", apperrors.CodeInvalidInput)
	}

	subject := threading.NormalizeSubject(req.Subject)
	if subject == "" {
		return "", "", apperrors.NewAppError(apperrors.ErrInvalidInput, "subject is required", apperrors.CodeInvalidInput)
	}

	composed, err := s.send(ctx, req, nil)
	if err != nil {
		return "", "", err
	}

	name := req.ToName
	if name == "" {
		name = req.To
	}
	thread := &models.Thread{
		Subject:           subject,
		Status:            models.ThreadStatusOpen,
		CounterpartyName:  name,
		CounterpartyEmail: req.To,
	}
	if err := s.record(ctx, thread, true, composed); err != nil {
		return "", "", err
	}
	return thread.ID, composed.MessageID, nil
}

func (s *Service) send(ctx context.Context, req Request, chain models.MessageIDList) (*Composed, error) {
	composed, err := s.composer.Compose(req, chain)
	if err != nil {
		return nil, err
	}

	if err := s.transport.Send(ctx, s.composer.From(), []string{req.To}, composed.Raw); err != nil {
		s.logger.Error("failed to send message",
			slog.String("message_id", composed.MessageID),
			slog.String("to", req.To),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSendFailed, err)
	}
	return composed, nil
}

func (s *Service) record(ctx context.Context, thread *models.Thread, isNew bool, composed *Composed) error {
	inserted, err := s.threads.AppendMessage(ctx, thread, isNew, composed.Message())
	if err != nil {
		// The message is already out; only the local copy is missing
		s.logger.Error("sent message could not be recorded",
			slog.String("message_id", composed.MessageID),
			slog.String("thread_id", thread.ID),
			slog.Any("error", err),
		)
		return fmt.Errorf("record sent message %s: %w", mailparse.FormatMessageID(composed.MessageID), err)
	}
	if !inserted {
		s.logger.Warn("sent message was already recorded", slog.String("message_id", composed.MessageID))
	}

	s.logger.Info("message sent",
		slog.String("message_id", composed.MessageID),
		slog.String("thread_id", thread.ID),
		slog.Bool("new_thread", isNew),
	)
	return nil
}
