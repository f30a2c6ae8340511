// Package mailparse turns raw RFC 5322 messages into the fields the
// threading engine stores.
package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/welldanyogia/threadmail/internal/models"
	"github.com/welldanyogia/threadmail/internal/validator"
)

// NoSubject is stored when a message carries no usable subject
const NoSubject = "(no subject)"

// SyntheticDomain is the domain of identifiers synthesized for messages
// that arrive without a Message-ID header
const SyntheticDomain = "threadmail.invalid"

// Header-derived values are cut to these lengths in runes
const (
	MaxSubjectLength = 998
	MaxNameLength    = 255
)

// DefaultContentType is used for attachments without a declared type
const DefaultContentType = "application/octet-stream"

// ErrUnparseable is returned when the raw bytes are not a mail message
var ErrUnparseable = errors.New("message could not be parsed")

// ParsedMessage holds the structured fields of one raw message
type ParsedMessage struct {
	MessageID         string
	InReplyTo         string
	References        []string
	FromEmail         string
	FromName          string
	ToEmail           string
	Subject           string
	BodyText          string
	BodyHTML          string
	FromOperator      bool
	CounterpartyName  string
	CounterpartyEmail string
	Date              time.Time
	SourceUID         uint32
	Attachments       []RawAttachment
}

// RawAttachment is an attachment blob as found in the message
type RawAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Parser parses messages relative to the operator mailbox address
type Parser struct {
	operator string
	now      func() time.Time
}

// NewParser creates a parser for the given operator address
func NewParser(operatorAddress string) *Parser {
	return &Parser{
		operator: strings.ToLower(strings.TrimSpace(operatorAddress)),
		now:      time.Now,
	}
}

// Parse parses raw, the full bytes of the message stored under uid in the mailbox
func (p *Parser) Parse(raw []byte, uid uint32) (*ParsedMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	parsed := &ParsedMessage{
		MessageID:  firstID(env.GetHeader("Message-ID")),
		InReplyTo:  firstID(env.GetHeader("In-Reply-To")),
		References: ParseMessageIDs(env.GetHeader("References")),
		Subject:    validator.SanitizeString(env.GetHeader("Subject"), MaxSubjectLength),
		BodyText:   env.Text,
		BodyHTML:   env.HTML,
		SourceUID:  uid,
	}

	if parsed.MessageID == "" {
		parsed.MessageID = SyntheticMessageID(uid)
	}
	if parsed.Subject == "" {
		parsed.Subject = NoSubject
	}

	parsed.Date = p.now().UTC()
	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		parsed.Date = date.UTC()
	}

	parsed.FromName, parsed.FromEmail = firstAddress(env, "From")
	toName, toEmail := firstAddress(env, "To")
	parsed.ToEmail = toEmail

	parsed.FromOperator = p.IsOperator(parsed.FromEmail)
	if parsed.FromOperator {
		parsed.CounterpartyName, parsed.CounterpartyEmail = displayName(toName, toEmail), toEmail
	} else {
		parsed.CounterpartyName, parsed.CounterpartyEmail = displayName(parsed.FromName, parsed.FromEmail), parsed.FromEmail
	}

	parsed.Attachments = collectAttachments(env)

	return parsed, nil
}

// IsOperator reports whether address is the operator mailbox, ignoring case
func (p *Parser) IsOperator(address string) bool {
	return p.operator != "" && strings.EqualFold(strings.TrimSpace(address), p.operator)
}

// Message converts the parsed fields into an unsaved message row
func (m *ParsedMessage) Message() *models.Message {
	msg := &models.Message{
		MessageID:    m.MessageID,
		References:   models.MessageIDList(m.References),
		FromEmail:    m.FromEmail,
		FromName:     m.FromName,
		ToEmail:      m.ToEmail,
		Subject:      m.Subject,
		BodyText:     m.BodyText,
		BodyHTML:     m.BodyHTML,
		FromOperator: m.FromOperator,
		CreatedAt:    m.Date,
	}
	if m.InReplyTo != "" {
		inReplyTo := m.InReplyTo
		msg.InReplyTo = &inReplyTo
	}
	if m.SourceUID != 0 {
		uid := m.SourceUID
		msg.SourceUID = &uid
	}
	return msg
}

// SyntheticMessageID derives a stable identifier from the mailbox UID
func SyntheticMessageID(uid uint32) string {
	return fmt.Sprintf("uid-%d@%s", uid, SyntheticDomain)
}

func firstAddress(env *enmime.Envelope, header string) (name, email string) {
	list, err := env.AddressList(header)
	if err == nil && len(list) > 0 {
		name, email = list[0].Name, list[0].Address
	} else {
		// Fall back to the raw header for addresses net/mail rejects
		name, email = parseFromHeader(env.GetHeader(header))
	}
	return validator.SanitizeString(name, MaxNameLength), strings.TrimSpace(email)
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}

func collectAttachments(env *enmime.Envelope) []RawAttachment {
	var out []RawAttachment
	add := func(part *enmime.Part) {
		n := len(out) + 1
		filename := strings.TrimSpace(part.FileName)
		if filename == "" {
			filename = fmt.Sprintf("attachment-%d", n)
		}
		contentType := part.ContentType
		if contentType == "" {
			contentType = DefaultContentType
		}
		out = append(out, RawAttachment{
			Filename:    filename,
			ContentType: contentType,
			Content:     part.Content,
		})
	}

	for _, att := range env.Attachments {
		add(att)
	}
	// Inline parts only count when they are named files
	for _, att := range env.Inlines {
		if att.FileName != "" {
			add(att)
		}
	}
	return out
}
