// Package attachments persists message attachments to blob storage.
package attachments

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/welldanyogia/threadmail/internal/mailparse"
	"github.com/welldanyogia/threadmail/internal/models"
	"github.com/welldanyogia/threadmail/internal/storage"
	"github.com/welldanyogia/threadmail/internal/validator"
)

// Store uploads attachments under a thread/message keyed path
type Store struct {
	files  storage.FileStorage
	logger *slog.Logger
}

// NewStore creates a new attachment store
func NewStore(files storage.FileStorage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{files: files, logger: logger}
}

// Key returns the storage key of an attachment
func Key(threadID, messageID, filename string) string {
	return path.Join("threads", keySegment(threadID), keySegment(messageID), validator.SanitizeFilename(filename))
}

// SaveAll uploads every attachment and returns descriptors for those that
// were stored. A failed upload is logged and the attachment dropped; the
// owning message is still delivered.
func (s *Store) SaveAll(ctx context.Context, threadID, messageID string, raws []mailparse.RawAttachment) []models.Attachment {
	var saved []models.Attachment
	used := make(map[string]bool, len(raws))

	for _, raw := range raws {
		if ctx.Err() != nil {
			s.logger.Warn("attachment upload cancelled",
				slog.String("thread_id", threadID),
				slog.String("message_id", messageID),
				slog.Int("remaining", len(raws)-len(saved)),
			)
			break
		}

		att, err := s.save(threadID, messageID, uniqueName(used, raw.Filename), raw)
		if err != nil {
			s.logger.Error("failed to store attachment",
				slog.String("thread_id", threadID),
				slog.String("message_id", messageID),
				slog.String("filename", raw.Filename),
				slog.Any("error", err),
			)
			continue
		}
		saved = append(saved, att)
	}

	return saved
}

func (s *Store) save(threadID, messageID, filename string, raw mailparse.RawAttachment) (models.Attachment, error) {
	size := int64(len(raw.Content))
	if err := storage.ValidateFile(filename, size); err != nil {
		return models.Attachment{}, err
	}

	key := Key(threadID, messageID, filename)
	written, err := s.files.Put(key, bytes.NewReader(raw.Content))
	if err != nil {
		return models.Attachment{}, fmt.Errorf("upload %s: %w", key, err)
	}

	return models.Attachment{
		Filename:    validator.SanitizeFilename(filename),
		ContentType: raw.ContentType,
		StoragePath: key,
		URL:         s.files.URL(key),
		SizeBytes:   written,
	}, nil
}

// uniqueName disambiguates repeated filenames within one message so
// that uploads do not overwrite each other. Every name handed out is
// recorded, including generated ones.
func uniqueName(used map[string]bool, filename string) string {
	name := validator.SanitizeFilename(filename)
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

// keySegment makes an identifier safe to use as one path segment
func keySegment(id string) string {
	id = mailparse.StripBrackets(id)
	id = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id)
	if id == "" {
		return "_"
	}
	return id
}

// Discard removes blobs uploaded for a message that was not stored after all
func (s *Store) Discard(saved []models.Attachment) {
	for _, att := range saved {
		if err := s.files.Delete(att.StoragePath); err != nil {
			s.logger.Warn("failed to discard attachment",
				slog.String("path", att.StoragePath),
				slog.Any("error", err),
			)
		}
	}
}
