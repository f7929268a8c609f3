// handler.go — основной обработчик API Filegate.
// Объединяет health и бизнес-обработчики, делегируя запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/gofilegate/internal/api/errors"
	"github.com/bigkaa/gofilegate/internal/service"
)

// APIHandler — основной обработчик API Filegate.
type APIHandler struct {
	health  *HealthHandler
	uploads *service.UploadService
	access  *service.AccessService
	files   *service.FileService
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	uploads *service.UploadService,
	access *service.AccessService,
	files *service.FileService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:  health,
		uploads: uploads,
		access:  access,
		files:   files,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса в dst. При ошибке пишет 400 и
// возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return false
	}
	return true
}

// writeServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
// Ошибки, не имеющие явного маппинга, логируются и возвращаются как 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ресурс не найден")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrUploadNotVerified):
		apierrors.UploadNotVerified(w, "Объект не подтверждён в хранилище, фиксация отклонена")
	case errors.Is(err, service.ErrStoreUnavailable):
		h.logger.Error("Объектное хранилище недоступно", slog.String("error", err.Error()))
		apierrors.StoreUnavailable(w, "Объектное хранилище временно недоступно")
	case errors.Is(err, service.ErrMissingStorageKey):
		h.logger.Error("Аномалия целостности данных", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	default:
		h.logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
