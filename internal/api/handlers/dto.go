// dto.go — JSON-представления доменных сущностей для REST API.
// Статус записи в ответах всегда производный: overdue вычисляется
// сервисным слоем на чтении и никогда не хранится.
package handlers

import (
	"time"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/checklist"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/service"
)

// listResponse — обёртка списочных ответов с пагинацией.
type listResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// templateResponse — представление шаблона чек-листа.
type templateResponse struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	IsActive    bool                  `json:"is_active"`
	Items       []model.ChecklistItem `json:"items"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func mapTemplate(tpl *model.Template) templateResponse {
	return templateResponse{
		ID:          tpl.ID,
		Name:        tpl.Name,
		Description: tpl.Description,
		IsActive:    tpl.IsActive,
		Items:       tpl.Items,
		CreatedAt:   tpl.CreatedAt,
		UpdatedAt:   tpl.UpdatedAt,
	}
}

// assetResponse — ссылка на обслуживаемый объект со снимком имени.
type assetResponse struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// recordResponse — представление записи обслуживания.
// ChecklistComplete — справочный признак полноты чек-листа
// (обязательные пункты); завершение записи им не блокируется.
type recordResponse struct {
	ID                string                    `json:"id"`
	Title             string                    `json:"title"`
	Asset             assetResponse             `json:"asset"`
	Status            model.Status              `json:"status"`
	ScheduledAt       time.Time                 `json:"scheduled_at"`
	CompletedAt       *time.Time                `json:"completed_at,omitempty"`
	Recurrence        model.Recurrence          `json:"recurrence"`
	Checklist         *model.ChecklistExecution `json:"checklist,omitempty"`
	ChecklistComplete *bool                     `json:"checklist_complete,omitempty"`
	Notes             string                    `json:"notes,omitempty"`
	TechnicianID      *string                   `json:"technician_id,omitempty"`
	Photos            []string                  `json:"photos"`
	OriginActivityID  *string                   `json:"origin_activity_id,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

func mapRecord(rec *model.MaintenanceRecord) recordResponse {
	resp := recordResponse{
		ID:    rec.ID,
		Title: rec.Title,
		Asset: assetResponse{
			Type: string(rec.Asset.Type),
			ID:   rec.Asset.ID,
			Name: rec.Asset.Name,
		},
		Status:           rec.Status,
		ScheduledAt:      rec.ScheduledAt,
		CompletedAt:      rec.CompletedAt,
		Recurrence:       rec.Recurrence,
		Checklist:        rec.Checklist,
		Notes:            rec.Notes,
		TechnicianID:     rec.TechnicianID,
		Photos:           rec.Photos,
		OriginActivityID: rec.OriginActivityID,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	if resp.Photos == nil {
		resp.Photos = []string{}
	}
	if rec.Checklist != nil {
		complete := checklist.IsComplete(rec.Checklist)
		resp.ChecklistComplete = &complete
	}
	return resp
}

// completeResponse — ответ завершения записи. NextOccurrence — плановое
// время следующего обслуживания для повторяющихся работ (создание
// следующей записи остаётся за вызывающей стороной).
type completeResponse struct {
	Record         recordResponse `json:"record"`
	NextOccurrence *time.Time     `json:"next_occurrence,omitempty"`
}

// usageRecordResponse — одна запись в отчёте об использовании шаблона.
type usageRecordResponse struct {
	RecordID    string       `json:"record_id"`
	Title       string       `json:"title"`
	Status      model.Status `json:"status"`
	ScheduledAt time.Time    `json:"scheduled_at"`
}

// usageReportResponse — отчёт об использовании шаблона.
type usageReportResponse struct {
	TemplateID string                `json:"template_id"`
	InUse      bool                  `json:"in_use"`
	Records    []usageRecordResponse `json:"records"`
}

func mapUsageReport(report *service.TemplateUsageReport) usageReportResponse {
	records := make([]usageRecordResponse, 0, len(report.Records))
	for _, u := range report.Records {
		records = append(records, usageRecordResponse{
			RecordID:    u.RecordID,
			Title:       u.Title,
			Status:      u.Status,
			ScheduledAt: u.ScheduledAt,
		})
	}
	return usageReportResponse{
		TemplateID: report.TemplateID,
		InUse:      report.InUse,
		Records:    records,
	}
}
