// files.go — обработчики файловых endpoints Filegate:
// выдача upload/download URL, фиксация, список, метки, удаление.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/gofilegate/internal/api/errors"
	"github.com/bigkaa/gofilegate/internal/api/middleware"
	"github.com/bigkaa/gofilegate/internal/domain/model"
	"github.com/bigkaa/gofilegate/internal/service"
)

// labelsDTO — классификационные метки в теле запроса/ответа.
type labelsDTO struct {
	Product    *string `json:"product,omitempty"`
	Version    *string `json:"version,omitempty"`
	Language   *string `json:"language,omitempty"`
	Confluence *string `json:"confluence,omitempty"`
}

func (l labelsDTO) toModel() model.Labels {
	return model.Labels{
		Product:    l.Product,
		Version:    l.Version,
		Language:   l.Language,
		Confluence: l.Confluence,
	}
}

func labelsFromModel(l model.Labels) labelsDTO {
	return labelsDTO{
		Product:    l.Product,
		Version:    l.Version,
		Language:   l.Language,
		Confluence: l.Confluence,
	}
}

// fileResponse — представление записи файла в API.
type fileResponse struct {
	FileID      string    `json:"file_id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	StorageKey  string    `json:"storage_key"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Labels      labelsDTO `json:"labels"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func fileFromModel(f *model.FileRecord) fileResponse {
	return fileResponse{
		FileID:      f.FileID,
		Filename:    f.Filename,
		Size:        f.Size,
		ContentType: f.ContentType,
		StorageKey:  f.StorageKey,
		UploadedBy:  f.UploadedBy,
		UploadedAt:  f.UploadedAt,
		Labels:      labelsFromModel(f.Labels),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// hiddenFileMessage — единый текст для "не найден" и "нет доступа".
// Различие в ответе позволило бы перебором выяснять, какие файлы
// существуют.
const hiddenFileMessage = "Файл не найден или недоступен"

// fileIDFromRequest извлекает и валидирует fileID из пути.
// Некорректный UUID неотличим от несуществующего файла.
func fileIDFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	fileID := chi.URLParam(r, "fileID")
	if _, err := uuid.Parse(fileID); err != nil {
		apierrors.NotFound(w, hiddenFileMessage)
		return "", false
	}
	return fileID, true
}

// --- POST /api/v1/files/upload-url ---

// requestUploadRequest — тело запроса на выдачу upload URL.
type requestUploadRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// requestUploadResponse — выданный upload capability.
type requestUploadResponse struct {
	StorageKey string `json:"storage_key"`
	UploadURL  string `json:"upload_url"`
	ExpiresIn  int    `json:"expires_in"`
}

// RequestUploadURL выдаёт presigned PUT URL для прямой загрузки в хранилище.
func (h *APIHandler) RequestUploadURL(w http.ResponseWriter, r *http.Request) {
	var req requestUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ticket, err := h.uploads.RequestUpload(r.Context(), req.Filename, req.Size)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, requestUploadResponse{
		StorageKey: ticket.StorageKey,
		UploadURL:  ticket.UploadURL.String(),
		ExpiresIn:  int(ticket.ExpiresIn.Seconds()),
	})
}

// --- POST /api/v1/files ---

// commitRequest — тело запроса фиксации загрузки.
type commitRequest struct {
	StorageKey  string    `json:"storage_key"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Labels      labelsDTO `json:"labels"`
	Recipients  []string  `json:"recipients"`
}

// CommitUpload фиксирует загрузку: создаёт запись файла после
// подтверждения наличия объекта в хранилище.
func (h *APIHandler) CommitUpload(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	record, err := h.uploads.Commit(r.Context(), service.CommitParams{
		StorageKey:  req.StorageKey,
		Filename:    req.Filename,
		Size:        req.Size,
		ContentType: req.ContentType,
		UploadedBy:  middleware.SubjectFromContext(r.Context()),
		Labels:      req.Labels.toModel(),
		Recipients:  req.Recipients,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, fileFromModel(record))
}

// --- GET /api/v1/files ---

// listFilesResponse — список файлов, видимых пользователю.
type listFilesResponse struct {
	Files []fileResponse `json:"files"`
	Total int            `json:"total"`
}

// ListFiles возвращает файлы, видимые текущему пользователю:
// администратору — все, остальным — только назначенные.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	records, err := h.files.ListVisible(r.Context(), claims.Subject, claims.IsAdmin)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := listFilesResponse{Files: make([]fileResponse, 0, len(records))}
	for _, record := range records {
		resp.Files = append(resp.Files, fileFromModel(record))
	}
	resp.Total = len(resp.Files)

	writeJSON(w, http.StatusOK, resp)
}

// --- GET /api/v1/files/{fileID}/download-url ---

// downloadURLResponse — выданный download capability.
type downloadURLResponse struct {
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	ExpiresIn   int    `json:"expires_in"`
}

// GetDownloadURL проверяет право пользователя и выдаёт presigned GET URL.
func (h *APIHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	fileID, ok := fileIDFromRequest(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	grant, err := h.access.ResolveDownload(r.Context(), claims.Subject, claims.IsAdmin, fileID)
	if err != nil {
		// Отказ в доступе и отсутствие файла отвечают одинаково
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrAccessDenied) {
			apierrors.NotFound(w, hiddenFileMessage)
			return
		}
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, downloadURLResponse{
		DownloadURL: grant.URL.String(),
		Filename:    grant.Filename,
		Size:        grant.Size,
		ContentType: grant.ContentType,
		ExpiresIn:   int(grant.ExpiresIn.Seconds()),
	})
}

// --- PATCH /api/v1/files/{fileID} ---

// UpdateFileLabels обновляет классификационные метки файла.
func (h *APIHandler) UpdateFileLabels(w http.ResponseWriter, r *http.Request) {
	fileID, ok := fileIDFromRequest(w, r)
	if !ok {
		return
	}

	var req labelsDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.files.UpdateLabels(r.Context(), fileID, req.toModel()); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- DELETE /api/v1/files/{fileID} ---

// deleteFileResponse — результат удаления файла.
type deleteFileResponse struct {
	Deleted       bool   `json:"deleted"`
	ObjectRemoved bool   `json:"object_removed"`
	CleanupURL    string `json:"cleanup_url,omitempty"`
}

// DeleteFile удаляет файл: метаданные авторитетно, объект — best-effort.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := fileIDFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.uploads.Delete(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := deleteFileResponse{
		Deleted:       true,
		ObjectRemoved: result.ObjectRemoved,
	}
	if result.CleanupURL != nil {
		resp.CleanupURL = result.CleanupURL.String()
	}

	writeJSON(w, http.StatusOK, resp)
}
