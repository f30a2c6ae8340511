package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type fakeScheduler bool

func (f fakeScheduler) IsRunning() bool { return bool(f) }

func setupHealthTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// GORM pings during initialization
	mock.ExpectPing()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func serveHealth(t *testing.T, handler *HealthHandler, path string, fn func(*HealthHandler, echo.Context) error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	require.NoError(t, fn(handler, e.NewContext(req, rec)))
	return rec
}

func TestHealthHandler_Health_Healthy(t *testing.T) {
	gormDB, mock := setupHealthTestDB(t)
	mock.ExpectPing()

	rec := serveHealth(t, NewHealthHandler(gormDB, fakeScheduler(true)), "/health", (*HealthHandler).Health)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"database":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"sync_scheduler":"running"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthHandler_Health_DatabaseDown(t *testing.T) {
	gormDB, mock := setupHealthTestDB(t)
	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	rec := serveHealth(t, NewHealthHandler(gormDB, fakeScheduler(false)), "/health", (*HealthHandler).Health)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
	assert.Contains(t, rec.Body.String(), `"database":"unhealthy"`)
	assert.Contains(t, rec.Body.String(), `"sync_scheduler":"stopped"`)
}

func TestHealthHandler_Health_SchedulerDisabled(t *testing.T) {
	gormDB, mock := setupHealthTestDB(t)
	mock.ExpectPing()

	rec := serveHealth(t, NewHealthHandler(gormDB, nil), "/health", (*HealthHandler).Health)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sync_scheduler":"disabled"`)
}

func TestHealthHandler_Ready(t *testing.T) {
	gormDB, mock := setupHealthTestDB(t)
	mock.ExpectPing()

	rec := serveHealth(t, NewHealthHandler(gormDB, nil), "/ready", (*HealthHandler).Ready)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
}

func TestHealthHandler_Ready_NotReady(t *testing.T) {
	gormDB, mock := setupHealthTestDB(t)
	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	rec := serveHealth(t, NewHealthHandler(gormDB, nil), "/ready", (*HealthHandler).Ready)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"not ready"`)
	assert.Contains(t, rec.Body.String(), `"reason":"database ping failed"`)
}
