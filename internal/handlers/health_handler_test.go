package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bough38-web/inspection-app/internal/handlers"
	"github.com/bough38-web/inspection-app/internal/services"
)

func TestHealthHandler_Check(t *testing.T) {
	h := handlers.NewHealthHandler(stubHealthService{report: services.HealthReport{
		Status:     "degraded",
		Configured: false,
		Checks:     map[string]string{"database": "ok", "storage_service": "auth_failed"},
		Env:        map[string]string{"ENCRYPTION_KEY": "MISSING"},
		Version:    "test",
		Timestamp:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}})

	rr := httptest.NewRecorder()
	h.Check(rr, httptest.NewRequest(http.MethodGet, "/api/health-check", nil))

	// Деградация не меняет код ответа
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{
		"status": "degraded",
		"configured": false,
		"checks": {"database": "ok", "storage_service": "auth_failed"},
		"env": {"ENCRYPTION_KEY": "MISSING"},
		"version": "test",
		"timestamp": "2025-03-01T00:00:00Z"
	}`, rr.Body.String())
}

func TestPing(t *testing.T) {
	rr := httptest.NewRecorder()
	handlers.Ping(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", rr.Body.String())
}
