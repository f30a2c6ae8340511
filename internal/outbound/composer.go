// Package outbound composes operator messages with threading headers,
// submits them over SMTP and records them in their thread.
package outbound

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
	apperrors "github.com/welldanyogia/threadmail/internal/errors"
	"github.com/welldanyogia/threadmail/internal/mailparse"
	"github.com/welldanyogia/threadmail/internal/models"
	"github.com/welldanyogia/threadmail/internal/validator"
)

// ReplyPrefix is prepended to the thread subject when a reply has none
const ReplyPrefix = "Re: "

// Request is an operator message to send
type Request struct {
	To       string `json:"to"`
	ToName   string `json:"to_name"`
	Subject  string `json:"subject"`
	BodyText string `json:"body_text"`
	BodyHTML string `json:"body_html"`
}

// Validate checks the request fields that do not depend on a thread
func (r Request) Validate() error {
	if strings.TrimSpace(r.BodyText) == "" && strings.TrimSpace(r.BodyHTML) == "" {
		return fmt.Errorf("%w: message body is required", apperrors.ErrInvalidInput)
	}
	if r.To != "" {
		if err := validator.ValidateEmail(r.To); err != nil {
			return fmt.Errorf("%w: recipient: %v", apperrors.ErrInvalidInput, err)
		}
	}
	for _, v := range []string{r.Subject, r.ToName} {
		if err := validator.ValidateHeaderValue(v); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
	}
	return nil
}

// Composed is a message ready for submission
type Composed struct {
	MessageID  string
	InReplyTo  string
	References []string
	From       string
	To         string
	Subject    string
	Date       time.Time
	BodyText   string
	BodyHTML   string
	Raw        []byte
}

// Message converts the composed message into an unsaved operator-authored row
func (c *Composed) Message() *models.Message {
	msg := &models.Message{
		MessageID:    c.MessageID,
		References:   models.MessageIDList(c.References),
		FromEmail:    c.From,
		ToEmail:      c.To,
		Subject:      c.Subject,
		BodyText:     c.BodyText,
		BodyHTML:     c.BodyHTML,
		FromOperator: true,
		CreatedAt:    c.Date,
	}
	if c.InReplyTo != "" {
		inReplyTo := c.InReplyTo
		msg.InReplyTo = &inReplyTo
	}
	return msg
}

// Composer builds MIME messages from the operator mailbox
type Composer struct {
	fromEmail string
	fromName  string
	domain    string
	now       func() time.Time
	newID     func() string
}

// NewComposer creates a composer sending as the operator
func NewComposer(operatorEmail, operatorName string) *Composer {
	domain := "localhost"
	if at := strings.LastIndex(operatorEmail, "@"); at >= 0 && at < len(operatorEmail)-1 {
		domain = operatorEmail[at+1:]
	}
	return &Composer{
		fromEmail: operatorEmail,
		fromName:  operatorName,
		domain:    domain,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// From returns the operator address used as envelope sender
func (c *Composer) From() string {
	return c.fromEmail
}

// Compose builds a message for req. chain is the thread's message
// identifier list, oldest first; when non-empty the message answers its
// newest entry and references all of them.
func (c *Composer) Compose(req Request, chain models.MessageIDList) (*Composed, error) {
	composed := &Composed{
		MessageID: fmt.Sprintf("%s@%s", c.newID(), c.domain),
		From:      c.fromEmail,
		To:        req.To,
		Subject:   req.Subject,
		Date:      c.now().UTC().Truncate(time.Second),
		BodyText:  req.BodyText,
		BodyHTML:  req.BodyHTML,
	}
	if len(chain) > 0 {
		composed.References = append([]string(nil), chain...)
		composed.InReplyTo = chain.Last()
	}

	builder := enmime.Builder().
		From(c.fromName, c.fromEmail).
		To(req.ToName, req.To).
		Subject(composed.Subject).
		Date(composed.Date).
		Header("Message-ID", mailparse.FormatMessageID(composed.MessageID))
	if composed.InReplyTo != "" {
		builder = builder.
			Header("In-Reply-To", mailparse.FormatMessageID(composed.InReplyTo)).
			Header("References", mailparse.FormatReferences(composed.References))
	}
	if req.BodyText != "" {
		builder = builder.Text([]byte(req.BodyText))
	}
	if req.BodyHTML != "" {
		builder = builder.HTML([]byte(req.BodyHTML))
	}

	root, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	composed.Raw = buf.Bytes()

	return composed, nil
}
