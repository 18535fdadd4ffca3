package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"db-schema-keeper/internal/config"
	"db-schema-keeper/internal/models"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	cfg := &config.AppConfig{
		Reset:       config.ResetConfig{Concurrency: 2},
		Maintenance: config.MaintenanceConfig{Schedule: "@every 1h"},
	}
	ms := []models.Model{{TableName: "menu", Sync: models.SyncAlter}}
	app := NewApplication(cfg, db, nil, ms, zap.NewNop())
	t.Cleanup(app.Close)
	return app
}

func TestRoutes(t *testing.T) {
	app := newTestApp(t)
	mux := app.Routes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://admin.local")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://admin.local", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Body.String(), `"success":true`)

	body := `{"originArr":[{"id":1,"pid":0}],"originPid":0}`
	req = httptest.NewRequest(http.MethodPost, "/api/tree", strings.NewReader(body))
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[{"id":1,"pid":0}]`)

	req = httptest.NewRequest(http.MethodGet, "/api/maintenance/status", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cronSchedule":"@every 1h"`)
}

func TestStartupReset_Disabled(t *testing.T) {
	app := newTestApp(t)
	app.Config.Reset.OnStartup = false

	// returns at once and starts nothing
	app.StartupReset(t.Context())
	assert.False(t, app.Maintenance.IsRunning())
}
