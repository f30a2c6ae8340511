package mailsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/threadmail/internal/attachments"
	"github.com/welldanyogia/threadmail/internal/database"
	"github.com/welldanyogia/threadmail/internal/mailparse"
	"github.com/welldanyogia/threadmail/internal/repository"
	"github.com/welldanyogia/threadmail/internal/storage"
	"github.com/welldanyogia/threadmail/internal/threading"
	"gorm.io/gorm"
)

const operatorAddress = "support@shop.example"

// fakeMailbox serves messages from memory the way the IMAP client does
type fakeMailbox struct {
	mu       sync.Mutex
	messages map[uint32][]byte
	order    []uint32 // delivery order override; ascending when empty
	err      error
	calls    int
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{messages: make(map[uint32][]byte)}
}

func (m *fakeMailbox) put(uid uint32, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[uid] = raw
}

func (m *fakeMailbox) FetchSince(ctx context.Context, afterUID uint32, limit int) ([]RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	var uids []uint32
	for uid := range m.messages {
		if uid > afterUID {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}
	if len(m.order) > 0 {
		uids = m.order
	}

	out := make([]RawMessage, 0, len(uids))
	for _, uid := range uids {
		out = append(out, RawMessage{UID: uid, Raw: m.messages[uid]})
	}
	return out, nil
}

type harness struct {
	db       *gorm.DB
	mailbox  *fakeMailbox
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	cursor   repository.CursorRepository
	files    storage.FileStorage
	service  *Service
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, batchSize int) *harness {
	t.Helper()

	db, err := database.Connect("sqlite://:memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })

	files, err := storage.NewLocalStorage(t.TempDir(), "http://files.test/api/attachments")
	require.NoError(t, err)

	h := &harness{
		db:       db,
		mailbox:  newFakeMailbox(),
		threads:  repository.NewThreadRepository(db),
		messages: repository.NewMessageRepository(db),
		cursor:   repository.NewCursorRepository(db),
		files:    files,
	}
	logger := discardLogger()
	h.service = NewService(Deps{
		Mailbox:     h.mailbox,
		Parser:      mailparse.NewParser(operatorAddress),
		Resolver:    threading.NewDefaultResolver(h.messages, h.threads, threading.DefaultSubjectWindow),
		Attachments: attachments.NewStore(files, logger),
		Threads:     h.threads,
		Messages:    h.messages,
		Cursor:      h.cursor,
	}, batchSize, logger)
	return h
}

// mail describes a test message
type mail struct {
	from       string
	to         string
	subject    string
	messageID  string
	inReplyTo  string
	references []string
	date       time.Time
	body       string
}

func (m mail) raw() []byte {
	var b strings.Builder
	from := m.from
	if from == "" {
		from = `"Jane Customer" <customer@example.com>`
	}
	to := m.to
	if to == "" {
		to = operatorAddress
	}
	date := m.date
	if date.IsZero() {
		date = time.Now().Add(-time.Hour)
	}
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.subject)
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	if m.messageID != "" {
		fmt.Fprintf(&b, "Message-ID: <%s>\r\n", m.messageID)
	}
	if m.inReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: <%s>\r\n", m.inReplyTo)
	}
	if len(m.references) > 0 {
		fmt.Fprintf(&b, "References: %s\r\n", mailparse.FormatReferences(m.references))
	}
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	body := m.body
	if body == "" {
		body = "Hello"
	}
	b.WriteString(body + "\r\n")
	return []byte(b.String())
}
