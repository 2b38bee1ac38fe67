// records.go — обработчики /api/v1/records endpoints.
// Создание, списки, переходы статусов, чек-лист, фотографии.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/upkeep/maintenance-module/internal/api/errors"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/service"
)

// Ограничение размера загружаемой фотографии.
const maxPhotoUploadBytes = 20 << 20 // 20 MiB

// createRecordRequest — тело запроса создания записи обслуживания.
type createRecordRequest struct {
	Title            string                `json:"title"`
	AssetType        string                `json:"asset_type"`
	AssetID          string                `json:"asset_id"`
	ScheduledAt      time.Time             `json:"scheduled_at"`
	Recurrence       string                `json:"recurrence,omitempty"`
	Notes            string                `json:"notes,omitempty"`
	TechnicianID     *string               `json:"technician_id,omitempty"`
	OriginActivityID *string               `json:"origin_activity_id,omitempty"`
	TemplateID       *string               `json:"template_id,omitempty"`
	ChecklistItems   []model.ChecklistItem `json:"checklist_items,omitempty"`
}

// startRecordRequest — тело запроса запуска записи (опциональное).
type startRecordRequest struct {
	TechnicianID *string `json:"technician_id,omitempty"`
}

// completeRecordRequest — тело запроса завершения записи.
type completeRecordRequest struct {
	Notes  *string  `json:"notes,omitempty"`
	Photos []string `json:"photos,omitempty"`
}

// checklistRequest — тело запроса применения ответов чек-листа.
type checklistRequest struct {
	Responses []model.ItemResponse `json:"responses"`
}

// CreateRecord — POST /api/v1/records.
func (h *APIHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	rec, err := h.records.Create(r.Context(), service.CreateRecordInput{
		Title:            req.Title,
		AssetType:        req.AssetType,
		AssetID:          req.AssetID,
		ScheduledAt:      req.ScheduledAt,
		Recurrence:       req.Recurrence,
		Notes:            req.Notes,
		TechnicianID:     req.TechnicianID,
		OriginActivityID: req.OriginActivityID,
		TemplateID:       req.TemplateID,
		ChecklistItems:   req.ChecklistItems,
	})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания записи обслуживания")
		return
	}

	writeJSON(w, http.StatusCreated, mapRecord(rec))
}

// GetRecord — GET /api/v1/records/{id}.
func (h *APIHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения записи")
		return
	}

	writeJSON(w, http.StatusOK, mapRecord(rec))
}

// ListRecords — GET /api/v1/records?status=&asset_type=&asset_id=&limit=&offset=.
// Фильтр статуса — только хранимые статусы; overdue — производное
// представление и в фильтре отклоняется.
func (h *APIHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	recs, total, err := h.records.List(r.Context(), service.RecordListFilter{
		Status:    optionalQuery(r, "status"),
		AssetType: optionalQuery(r, "asset_type"),
		AssetID:   optionalQuery(r, "asset_id"),
	}, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка записей")
		return
	}

	items := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		items = append(items, mapRecord(rec))
	}

	writeJSON(w, http.StatusOK, listResponse[recordResponse]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// StartRecord — POST /api/v1/records/{id}/start.
// Переход scheduled → in_progress.
func (h *APIHandler) StartRecord(w http.ResponseWriter, r *http.Request) {
	var req startRecordRequest
	// io.EOF — пустое тело; chunked-запросы не несут Content-Length,
	// поэтому наличие тела по нему не определяется
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	rec, err := h.records.Start(r.Context(), chi.URLParam(r, "id"), req.TechnicianID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка запуска записи")
		return
	}

	writeJSON(w, http.StatusOK, mapRecord(rec))
}

// UpdateChecklist — PUT /api/v1/records/{id}/checklist.
// Применяет ответы чек-листа; статус записи не меняется.
func (h *APIHandler) UpdateChecklist(w http.ResponseWriter, r *http.Request) {
	var req checklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	rec, err := h.records.UpdateChecklist(r.Context(), chi.URLParam(r, "id"), req.Responses)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления чек-листа")
		return
	}

	writeJSON(w, http.StatusOK, mapRecord(rec))
}

// CompleteRecord — POST /api/v1/records/{id}/complete.
// Повторное завершение — 409 ALREADY_COMPLETED.
func (h *APIHandler) CompleteRecord(w http.ResponseWriter, r *http.Request) {
	var req completeRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	rec, next, err := h.records.Complete(r.Context(), chi.URLParam(r, "id"), req.Notes, req.Photos)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка завершения записи")
		return
	}

	writeJSON(w, http.StatusOK, completeResponse{
		Record:         mapRecord(rec),
		NextOccurrence: next,
	})
}

// DeleteRecord — DELETE /api/v1/records/{id}.
// Ограничений по статусу нет: административная коррекция.
func (h *APIHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления записи")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadRecordPhoto — POST /api/v1/records/{id}/photos.
// Принимает multipart/form-data с полем "photo", сохраняет файл
// в хранилище фотографий и дописывает URL к записи.
func (h *APIHandler) UploadRecordPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoUploadBytes)
	if err := r.ParseMultipartForm(maxPhotoUploadBytes); err != nil {
		apierrors.ValidationError(w, "Некорректный multipart запрос: "+err.Error())
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		apierrors.ValidationError(w, "Поле photo обязательно")
		return
	}
	defer file.Close()

	url, err := h.photos.Save(file, header.Filename)
	if err != nil {
		h.logger.Error("Ошибка сохранения фотографии", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка сохранения фотографии")
		return
	}

	rec, err := h.records.AttachPhoto(r.Context(), chi.URLParam(r, "id"), url)
	if err != nil {
		// Запись отвергла фотографию — убираем уже сохранённый файл
		if rmErr := h.photos.Remove(url); rmErr != nil {
			h.logger.Warn("Не удалось удалить отвергнутую фотографию", slog.String("error", rmErr.Error()))
		}
		h.writeServiceError(w, err, "Ошибка прикрепления фотографии")
		return
	}

	writeJSON(w, http.StatusCreated, mapRecord(rec))
}
