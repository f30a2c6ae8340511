package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/threadmail/internal/api/response"
	"github.com/welldanyogia/threadmail/internal/mailsync"
)

// Syncer runs one inbound synchronization pass
type Syncer interface {
	SyncInbox(ctx context.Context) (mailsync.Result, error)
}

// SyncHandler triggers inbound synchronization on demand
type SyncHandler struct {
	syncer Syncer
	logger *slog.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncer Syncer, logger *slog.Logger) *SyncHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncHandler{syncer: syncer, logger: logger}
}

// Trigger handles POST /api/sync
func (h *SyncHandler) Trigger(c echo.Context) error {
	result, err := h.syncer.SyncInbox(c.Request().Context())
	if err != nil {
		h.logger.Error("manual sync failed", slog.Any("error", err))
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, result, fmt.Sprintf("%d processed, %d failed, %d duplicates",
		result.Processed, result.Errors, result.Duplicates))
}
