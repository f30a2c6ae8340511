package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/threadmail/internal/api/response"
	"github.com/welldanyogia/threadmail/internal/repository"
	"github.com/welldanyogia/threadmail/internal/storage"
)

// AttachmentHandler handles attachment-related HTTP requests
type AttachmentHandler struct {
	attachmentRepo repository.AttachmentRepository
	messageRepo    repository.MessageRepository
	fileStorage    storage.FileStorage
}

// NewAttachmentHandler creates a new AttachmentHandler
func NewAttachmentHandler(
	attachmentRepo repository.AttachmentRepository,
	messageRepo repository.MessageRepository,
	fileStorage storage.FileStorage,
) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentRepo: attachmentRepo,
		messageRepo:    messageRepo,
		fileStorage:    fileStorage,
	}
}

// List handles GET /api/messages/:message_id/attachments
func (h *AttachmentHandler) List(c echo.Context) error {
	messageID := c.Param("message_id")
	if messageID == "" {
		return response.BadRequest(c, "invalid message ID")
	}

	if _, err := h.messageRepo.GetByID(c.Request().Context(), messageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "message not found")
		}
		return response.InternalError(c, "failed to get message")
	}

	attachments, err := h.attachmentRepo.ListByMessage(c.Request().Context(), messageID)
	if err != nil {
		return response.InternalError(c, "failed to list attachments")
	}

	return response.Success(c, attachments)
}

// Get handles GET /api/attachments/:id
func (h *AttachmentHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	attachment, err := h.attachmentRepo.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "attachment not found")
		}
		return response.InternalError(c, "failed to get attachment")
	}

	return response.Success(c, attachment)
}

// Download handles GET /api/attachments/:id/download
func (h *AttachmentHandler) Download(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid attachment ID")
	}

	attachment, err := h.attachmentRepo.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "attachment not found")
		}
		return response.InternalError(c, "failed to get attachment")
	}

	return h.stream(c, attachment.StoragePath, attachment.Filename, attachment.ContentType, attachment.SizeBytes)
}

// Serve handles GET /api/files/* and resolves the storage key in the path.
// Attachment URLs handed out by local storage point here.
func (h *AttachmentHandler) Serve(c echo.Context) error {
	key := c.Param("*")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	if key == "" {
		return response.NotFound(c, "file not found")
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	return h.stream(c, key, path.Base(key), contentType, 0)
}

func (h *AttachmentHandler) stream(c echo.Context, key, filename, contentType string, size int64) error {
	file, err := h.fileStorage.Get(key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrFileNotFound):
			return response.NotFound(c, "file not found")
		case errors.Is(err, storage.ErrPathTraversal):
			return response.BadRequest(c, "invalid file path")
		default:
			return response.InternalError(c, "failed to retrieve file")
		}
	}
	defer file.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, contentType)
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	}
	c.Response().WriteHeader(http.StatusOK)

	// Headers are already sent, so a failed copy can only be reported by
	// aborting the connection
	_, err = io.Copy(c.Response(), file)
	return err
}
