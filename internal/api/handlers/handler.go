// handler.go — основной обработчик REST API Maintenance Module.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/arturkryukov/upkeep/maintenance-module/internal/api/errors"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/photostore"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/service"
)

// APIHandler — основной обработчик API Maintenance Module.
type APIHandler struct {
	health    *HealthHandler
	templates *service.TemplateService
	records   *service.MaintenanceService
	schedule  *service.ScheduleService
	photos    *photostore.Store
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	templates *service.TemplateService,
	records *service.MaintenanceService,
	schedule *service.ScheduleService,
	photos *photostore.Store,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		templates: templates,
		records:   records,
		schedule:  schedule,
		photos:    photos,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// writeServiceError транслирует ошибку сервисного слоя в HTTP-ответ.
// Порядок проверок важен: AlreadyCompleted — специализация InvalidTransition.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrAlreadyCompleted):
		apierrors.AlreadyCompleted(w, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		apierrors.InvalidTransition(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка", "error", err)
		apierrors.InternalError(w, fallback)
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// pagination извлекает limit и offset из query string
// и нормализует их к допустимым значениям.
func pagination(r *http.Request) (int, int) {
	l := 100
	o := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			l = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o = n
		}
	}

	if l < 1 {
		l = 1
	}
	if l > 1000 {
		l = 1000
	}
	if o < 0 {
		o = 0
	}
	return l, o
}

// optionalQuery возвращает указатель на значение query-параметра
// или nil, если параметр отсутствует.
func optionalQuery(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}
