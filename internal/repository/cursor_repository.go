package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/welldanyogia/threadmail/internal/models"
	"gorm.io/gorm"
)

// CursorRepository defines the interface for the sync cursor singleton
type CursorRepository interface {
	Get(ctx context.Context) (*models.SyncCursor, error)
	Advance(ctx context.Context, uid uint32) (bool, error)
	Touch(ctx context.Context) error
}

// cursorRepository implements CursorRepository using GORM
type cursorRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCursorRepository creates a new CursorRepository instance
func NewCursorRepository(db *gorm.DB) CursorRepository {
	return &cursorRepository{db: db, now: time.Now}
}

// Get returns the cursor, creating it at zero on first use
func (r *cursorRepository) Get(ctx context.Context) (*models.SyncCursor, error) {
	cursor := models.SyncCursor{ID: models.SyncCursorID}
	result := r.db.WithContext(ctx).
		Where(models.SyncCursor{ID: models.SyncCursorID}).
		FirstOrCreate(&cursor)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load sync cursor: %w", result.Error)
	}
	return &cursor, nil
}

// Advance moves the cursor to uid only if uid is greater than the stored
// value (compare-and-set). It reports whether the row changed; a false
// result means another run already stored an equal or higher value.
func (r *cursorRepository) Advance(ctx context.Context, uid uint32) (bool, error) {
	if _, err := r.Get(ctx); err != nil {
		return false, err
	}

	result := r.db.WithContext(ctx).
		Model(&models.SyncCursor{}).
		Where("id = ? AND last_uid < ?", models.SyncCursorID, uid).
		Updates(map[string]interface{}{
			"last_uid":       uid,
			"version":        gorm.Expr("version + 1"),
			"last_synced_at": r.now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to advance sync cursor: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Touch records a completed sync run without moving the cursor
func (r *cursorRepository) Touch(ctx context.Context) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncCursor{}).
		Where("id = ?", models.SyncCursorID).
		Update("last_synced_at", r.now().UTC())
	if result.Error != nil {
		return fmt.Errorf("failed to record sync time: %w", result.Error)
	}
	return nil
}
