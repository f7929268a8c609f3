// assignments.go — обработчики управления назначениями файл ↔ пользователь.
// Оба endpoint заменяют полный набор атомарно (replace-семантика).
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gofilegate/internal/api/errors"
)

// --- PUT /api/v1/files/{fileID}/assignments ---

// fileAssignmentsRequest — полный набор получателей файла.
type fileAssignmentsRequest struct {
	UserIDs []string `json:"user_ids"`
}

// ReplaceFileAssignments заменяет полный набор пользователей файла.
// Пустой набор допустим — снимает все назначения.
func (h *APIHandler) ReplaceFileAssignments(w http.ResponseWriter, r *http.Request) {
	fileID, ok := fileIDFromRequest(w, r)
	if !ok {
		return
	}

	var req fileAssignmentsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.files.ReplaceAssignmentsForFile(r.Context(), fileID, req.UserIDs); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- PUT /api/v1/users/{userID}/assignments ---

// userAssignmentsRequest — полный набор файлов пользователя.
type userAssignmentsRequest struct {
	FileIDs []string `json:"file_ids"`
}

// ReplaceUserAssignments заменяет полный набор файлов пользователя.
func (h *APIHandler) ReplaceUserAssignments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		apierrors.ValidationError(w, "Не указан идентификатор пользователя")
		return
	}

	var req userAssignmentsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.files.ReplaceAssignmentsForUser(r.Context(), userID, req.FileIDs); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
