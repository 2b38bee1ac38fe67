// templates.go — обработчики /api/v1/templates endpoints.
// CRUD шаблонов, дублирование, архивирование, отчёт об использовании.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/upkeep/maintenance-module/internal/api/errors"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
)

// templateRequest — тело запросов создания и полной замены шаблона.
type templateRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Items       []model.ChecklistItem `json:"items"`
}

// duplicateTemplateRequest — тело запроса дублирования шаблона.
type duplicateTemplateRequest struct {
	Name *string `json:"name,omitempty"`
}

// CreateTemplate — POST /api/v1/templates.
func (h *APIHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	tpl, err := h.templates.Create(r.Context(), req.Name, req.Description, req.Items)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания шаблона")
		return
	}

	writeJSON(w, http.StatusCreated, mapTemplate(tpl))
}

// GetTemplate — GET /api/v1/templates/{id}.
func (h *APIHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения шаблона")
		return
	}

	writeJSON(w, http.StatusOK, mapTemplate(tpl))
}

// ListTemplates — GET /api/v1/templates?active_only=true&limit=&offset=.
func (h *APIHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	activeOnly := r.URL.Query().Get("active_only") == "true"

	templates, total, err := h.templates.List(r.Context(), activeOnly, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка шаблонов")
		return
	}

	items := make([]templateResponse, 0, len(templates))
	for _, tpl := range templates {
		items = append(items, mapTemplate(tpl))
	}

	writeJSON(w, http.StatusOK, listResponse[templateResponse]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// ReplaceTemplate — PUT /api/v1/templates/{id}.
// Полная замена метаданных и списка пунктов, не field-level patch.
func (h *APIHandler) ReplaceTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	tpl, err := h.templates.Replace(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description, req.Items)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка замены шаблона")
		return
	}

	writeJSON(w, http.StatusOK, mapTemplate(tpl))
}

// DuplicateTemplate — POST /api/v1/templates/{id}/duplicate.
func (h *APIHandler) DuplicateTemplate(w http.ResponseWriter, r *http.Request) {
	var req duplicateTemplateRequest
	// io.EOF — пустое тело; у chunked-запросов Content-Length отсутствует
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	dup, err := h.templates.Duplicate(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка дублирования шаблона")
		return
	}

	writeJSON(w, http.StatusCreated, mapTemplate(dup))
}

// ArchiveTemplate — PUT /api/v1/templates/{id}/archive.
// Мягкий вывод из оборота: шаблон скрывается из активного списка,
// но остаётся доступным для истории.
func (h *APIHandler) ArchiveTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Archive(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Ошибка архивирования шаблона")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TemplateUsage — GET /api/v1/templates/{id}/usage.
// Отчёт об использовании шаблона для показа перед удалением.
func (h *APIHandler) TemplateUsage(w http.ResponseWriter, r *http.Request) {
	report, err := h.templates.UsageReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения отчёта об использовании")
		return
	}

	writeJSON(w, http.StatusOK, mapUsageReport(report))
}

// DeleteTemplate — DELETE /api/v1/templates/{id}.
// Используемый шаблон не удаляется: 409 CONFLICT с количеством ссылок.
func (h *APIHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления шаблона")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
