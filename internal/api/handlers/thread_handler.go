package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/threadmail/internal/api/response"
	"github.com/welldanyogia/threadmail/internal/outbound"
	"github.com/welldanyogia/threadmail/internal/repository"
	"github.com/welldanyogia/threadmail/internal/validator"
)

// DefaultListWindow is how far back GET /api/threads looks when no lower
// bound is given
const DefaultListWindow = 30 * 24 * time.Hour

// Sender sends operator messages
type Sender interface {
	SendReply(ctx context.Context, threadID string, req outbound.Request) (string, error)
	CreateThreadAndSend(ctx context.Context, req outbound.Request) (string, string, error)
}

// ThreadHandler handles conversation HTTP requests
type ThreadHandler struct {
	threadRepo repository.ThreadRepository
	sender     Sender
	now        func() time.Time
}

// NewThreadHandler creates a new ThreadHandler
func NewThreadHandler(threadRepo repository.ThreadRepository, sender Sender) *ThreadHandler {
	return &ThreadHandler{
		threadRepo: threadRepo,
		sender:     sender,
		now:        time.Now,
	}
}

// ReplyResponse is returned after a reply was sent
type ReplyResponse struct {
	MessageID string `json:"message_id"`
}

// CreateResponse is returned after a new conversation was started
type CreateResponse struct {
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
}

// List handles GET /api/threads?from=&to=&limit=
// Bounds are RFC 3339 timestamps matched against the last activity.
func (h *ThreadHandler) List(c echo.Context) error {
	to := h.now().UTC()
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return response.BadRequest(c, "to must be an RFC 3339 timestamp")
		}
		to = parsed.UTC()
	}

	from := to.Add(-DefaultListWindow)
	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return response.BadRequest(c, "from must be an RFC 3339 timestamp")
		}
		from = parsed.UTC()
	}

	if from.After(to) {
		return response.BadRequest(c, "from must not be after to")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return response.BadRequest(c, "limit must be an integer")
		}
		limit = v
	}
	limit = validator.ValidateLimit(limit)

	threads, err := h.threadRepo.ListActiveBetween(c.Request().Context(), from, to, limit)
	if err != nil {
		return response.InternalError(c, "failed to list threads")
	}

	return response.List(c, threads, response.Meta{
		Count: len(threads),
		Limit: limit,
		From:  from.Format(time.RFC3339),
		To:    to.Format(time.RFC3339),
	})
}

// Get handles GET /api/threads/:id
func (h *ThreadHandler) Get(c echo.Context) error {
	thread, err := h.threadRepo.GetWithMessages(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "thread not found")
		}
		return response.InternalError(c, "failed to get thread")
	}

	return response.Success(c, thread)
}

// Reply handles POST /api/threads/:id/reply
func (h *ThreadHandler) Reply(c echo.Context) error {
	var req outbound.Request
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	messageID, err := h.sender.SendReply(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, ReplyResponse{MessageID: messageID})
}

// Create handles POST /api/threads
func (h *ThreadHandler) Create(c echo.Context) error {
	var req outbound.Request
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	threadID, messageID, err := h.sender.CreateThreadAndSend(c.Request().Context(), req)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, CreateResponse{ThreadID: threadID, MessageID: messageID})
}
