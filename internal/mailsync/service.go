// Package mailsync pulls new mail from the mailbox into stored threads.
package mailsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/welldanyogia/threadmail/internal/attachments"
	"github.com/welldanyogia/threadmail/internal/mailparse"
	"github.com/welldanyogia/threadmail/internal/models"
	"github.com/welldanyogia/threadmail/internal/repository"
	"github.com/welldanyogia/threadmail/internal/threading"
)

// DefaultBatchSize caps the number of messages handled per run
const DefaultBatchSize = 200

var (
	errEmptyMessage   = errors.New("empty message body")
	errDuplicateStore = errors.New("message already stored")
)

// RawMessage is one message as fetched from the mailbox
type RawMessage struct {
	UID uint32
	Raw []byte
}

// Mailbox fetches messages newer than a UID, oldest first. Errors returned
// from FetchSince are connection-level failures.
type Mailbox interface {
	FetchSince(ctx context.Context, afterUID uint32, limit int) ([]RawMessage, error)
}

// Result summarizes one sync run
type Result struct {
	Processed  int    `json:"processed"`
	Errors     int    `json:"errors"`
	Duplicates int    `json:"duplicates"`
	LastUID    uint32 `json:"last_uid"`
}

// Deps are the collaborators of Service
type Deps struct {
	Mailbox     Mailbox
	Parser      *mailparse.Parser
	Resolver    *threading.Resolver
	Attachments *attachments.Store
	Threads     repository.ThreadRepository
	Messages    repository.MessageRepository
	Cursor      repository.CursorRepository
}

// Service runs inbound synchronization. Runs within one process are
// serialized; the cursor compare-and-set guards against other processes.
type Service struct {
	deps      Deps
	batchSize int
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewService creates a sync service
func NewService(deps Deps, batchSize int, logger *slog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, batchSize: batchSize, logger: logger}
}

// SyncInbox fetches messages above the cursor and stores them in ascending
// UID order. A failing message is counted and skipped; the cursor still
// moves past it. A mailbox connection failure aborts the run before any
// message is handled and leaves the cursor untouched.
func (s *Service) SyncInbox(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor, err := s.deps.Cursor.Get(ctx)
	if err != nil {
		return Result{}, err
	}
	result := Result{LastUID: cursor.LastUID}

	batch, err := s.deps.Mailbox.FetchSince(ctx, cursor.LastUID, s.batchSize)
	if err != nil {
		return result, fmt.Errorf("fetch mailbox: %w", err)
	}
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].UID < batch[j].UID })

	maxUID := cursor.LastUID
	for _, raw := range batch {
		if ctx.Err() != nil {
			s.logger.Warn("sync interrupted", slog.Uint64("next_uid", uint64(raw.UID)), slog.Any("error", ctx.Err()))
			break
		}
		if raw.UID <= cursor.LastUID {
			continue
		}
		if raw.UID > maxUID {
			maxUID = raw.UID
		}

		err := s.processMessage(ctx, raw)
		switch {
		case errors.Is(err, errDuplicateStore):
			result.Duplicates++
		case err != nil:
			result.Errors++
			s.logger.Error("failed to process message",
				slog.Uint64("uid", uint64(raw.UID)),
				slog.Any("error", err),
			)
		default:
			result.Processed++
		}
	}

	// Progress made before a cancellation is still recorded
	persistCtx := context.WithoutCancel(ctx)
	if maxUID > cursor.LastUID {
		moved, err := s.deps.Cursor.Advance(persistCtx, maxUID)
		if err != nil {
			return result, err
		}
		if !moved {
			s.logger.Warn("sync cursor already past batch", slog.Uint64("uid", uint64(maxUID)))
		}
		result.LastUID = maxUID
	} else if err := s.deps.Cursor.Touch(persistCtx); err != nil {
		return result, err
	}

	s.logger.Info("inbox synchronized",
		slog.Int("fetched", len(batch)),
		slog.Int("processed", result.Processed),
		slog.Int("errors", result.Errors),
		slog.Int("duplicates", result.Duplicates),
		slog.Uint64("last_uid", uint64(result.LastUID)),
	)

	return result, nil
}

// processMessage stores one raw message. errDuplicateStore means the
// message was already present and nothing was written.
func (s *Service) processMessage(ctx context.Context, raw RawMessage) error {
	if len(raw.Raw) == 0 {
		return errEmptyMessage
	}

	parsed, err := s.deps.Parser.Parse(raw.Raw, raw.UID)
	if err != nil {
		return err
	}

	exists, err := s.deps.Messages.ExistsByMessageID(ctx, parsed.MessageID)
	if err != nil {
		return err
	}
	if exists {
		return errDuplicateStore
	}

	resolution, err := s.deps.Resolver.Resolve(ctx, threading.Candidate{
		MessageID:  parsed.MessageID,
		InReplyTo:  parsed.InReplyTo,
		References: parsed.References,
		Subject:    parsed.Subject,
	})
	if err != nil {
		return fmt.Errorf("resolve thread: %w", err)
	}

	var thread *models.Thread
	if resolution.Matched {
		thread, err = s.deps.Threads.GetByID(ctx, resolution.ThreadID)
		if err != nil {
			return fmt.Errorf("load thread %s: %w", resolution.ThreadID, err)
		}
	} else {
		thread = NewThreadFor(parsed)
	}

	message := parsed.Message()
	message.ID = uuid.NewString()
	message.Attachments = s.deps.Attachments.SaveAll(ctx, thread.ID, message.ID, parsed.Attachments)

	inserted, err := s.deps.Threads.AppendMessage(ctx, thread, !resolution.Matched, message)
	if err != nil {
		s.deps.Attachments.Discard(message.Attachments)
		return err
	}
	if !inserted {
		s.deps.Attachments.Discard(message.Attachments)
		return errDuplicateStore
	}

	s.logger.Debug("message stored",
		slog.String("message_id", parsed.MessageID),
		slog.String("thread_id", thread.ID),
		slog.String("tier", resolution.Tier),
		slog.Bool("new_thread", !resolution.Matched),
		slog.Int("attachments", len(message.Attachments)),
	)
	return nil
}

// NewThreadFor builds an unsaved thread for the first message of a
// conversation
func NewThreadFor(parsed *mailparse.ParsedMessage) *models.Thread {
	subject := threading.NormalizeSubject(parsed.Subject)
	if subject == "" {
		subject = mailparse.NoSubject
	}
	return &models.Thread{
		ID:                uuid.NewString(),
		Subject:           subject,
		Status:            models.ThreadStatusOpen,
		CounterpartyName:  parsed.CounterpartyName,
		CounterpartyEmail: parsed.CounterpartyEmail,
	}
}
