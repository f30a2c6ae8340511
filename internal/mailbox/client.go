// Package mailbox fetches raw messages from the synchronized IMAP mailbox.
package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/welldanyogia/threadmail/internal/config"
	apperrors "github.com/welldanyogia/threadmail/internal/errors"
	"github.com/welldanyogia/threadmail/internal/mailsync"
)

// IMAPClient reads one mailbox over IMAP. Every call opens its own
// connection and logs out when done.
type IMAPClient struct {
	server  config.MailServer
	mailbox string
	logger  *slog.Logger
	dial    func(addr string, opts *imapclient.Options) (*imapclient.Client, error)
}

// NewIMAPClient creates a client for server that reads mailboxName
func NewIMAPClient(server config.MailServer, mailboxName string, logger *slog.Logger) *IMAPClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &IMAPClient{server: server, mailbox: mailboxName, logger: logger}
	switch server.TLSMode {
	case config.TLSModeStartTLS:
		c.dial = imapclient.DialStartTLS
	case config.TLSModeNone:
		c.dial = imapclient.DialInsecure
	default:
		c.dial = imapclient.DialTLS
	}
	return c
}

// session is an authenticated connection with the mailbox selected
type session struct {
	client   *imapclient.Client
	selected *imap.SelectData
	stop     func() bool
}

func (s *session) close() {
	s.stop()
	_ = s.client.Logout().Wait()
	s.client.Close()
}

// connect dials, authenticates and selects the mailbox. Any failure here is
// a connection-level error.
func (c *IMAPClient) connect(ctx context.Context) (*session, error) {
	addr := c.server.Addr()

	client, err := c.dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to IMAP %s: %v", apperrors.ErrConnection, addr, err)
	}

	// go-imap commands take no context; closing the connection unblocks them
	stop := context.AfterFunc(ctx, func() { client.Close() })

	if err := client.Login(c.server.Username, c.server.Password).Wait(); err != nil {
		stop()
		client.Close()
		return nil, fmt.Errorf("%w: authentication failed for %s: %v", apperrors.ErrConnection, c.server.Username, err)
	}

	selected, err := client.Select(c.mailbox, nil).Wait()
	if err != nil {
		stop()
		_ = client.Logout().Wait()
		client.Close()
		return nil, fmt.Errorf("%w: selecting %s: %v", apperrors.ErrConnection, c.mailbox, err)
	}

	return &session{client: client, selected: selected, stop: stop}, nil
}

// FetchSince returns up to limit messages whose UID is greater than
// afterUID, in ascending UID order
func (c *IMAPClient) FetchSince(ctx context.Context, afterUID uint32, limit int) ([]mailsync.RawMessage, error) {
	sess, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	client, selected := sess.client, sess.selected

	c.logger.Debug("mailbox selected",
		slog.String("mailbox", c.mailbox),
		slog.Uint64("uid_validity", uint64(selected.UIDValidity)),
		slog.Uint64("uid_next", uint64(selected.UIDNext)),
		slog.Uint64("messages", uint64(selected.NumMessages)),
	)

	criteria := &imap.SearchCriteria{
		UID: []imap.UIDSet{{imap.UIDRange{Start: imap.UID(afterUID + 1), Stop: 0}}},
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("%w: searching %s: %v", apperrors.ErrConnection, c.mailbox, err)
	}

	uids := SelectUIDs(searchData.AllUIDs(), afterUID, limit)
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	byUID := make(map[imap.UID][]byte, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			c.logger.Warn("failed to collect message", slog.Any("error", err))
			continue
		}
		byUID[buf.UID] = buf.FindBodySection(bodySection)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("%w: fetching messages: %v", apperrors.ErrConnection, err)
	}

	// A UID whose body could not be read is still returned so that the
	// caller records it as a failure and moves past it
	messages := make([]mailsync.RawMessage, 0, len(uids))
	for _, uid := range uids {
		messages = append(messages, mailsync.RawMessage{UID: uint32(uid), Raw: byUID[uid]})
	}
	return messages, nil
}

// SelectUIDs keeps UIDs above afterUID, sorted ascending and capped at
// limit. A search for "n:*" always matches the highest UID even when it is
// below n, so the filter is required.
func SelectUIDs(uids []imap.UID, afterUID uint32, limit int) []imap.UID {
	out := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		if uint32(uid) > afterUID {
			out = append(out, uid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
