package handlers

import (
	"net/http"

	"github.com/bough38-web/inspection-app/internal/services"
)

// HealthHandler отдает диагностический отчет.
type HealthHandler struct {
	service services.HealthService
}

// NewHealthHandler создает новый экземпляр HealthHandler.
func NewHealthHandler(s services.HealthService) *HealthHandler {
	return &HealthHandler{service: s}
}

// Check возвращает отчет о конфигурации и зависимостях.
// Код ответа всегда 200, состояние передается в теле.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.service.Check(r.Context()))
}

// Ping - проверка живости процесса.
func Ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
