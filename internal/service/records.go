// records.go — сервис жизненного цикла записей обслуживания.
// Создание, переходы статусов, применение ответов чек-листа, завершение,
// фотографии. Статус в возвращаемых записях — производный: overdue
// вычисляется на каждом пути чтения, никогда не сохраняется.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/checklist"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/lifecycle"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/repository"
)

// CreateRecordInput — параметры создания записи обслуживания.
// TemplateID и ChecklistItems взаимоисключающи: чек-лист либо
// инстанцируется из шаблона, либо задаётся ad hoc, либо отсутствует.
type CreateRecordInput struct {
	Title            string
	AssetType        string
	AssetID          string
	ScheduledAt      time.Time
	Recurrence       string
	Notes            string
	TechnicianID     *string
	OriginActivityID *string
	TemplateID       *string
	ChecklistItems   []model.ChecklistItem
}

// RecordListFilter — фильтры списка записей. Статус — только хранимый
// (scheduled, in_progress, completed): overdue — производное представление,
// по нему фильтрация не поддерживается.
type RecordListFilter struct {
	Status    *string
	AssetType *string
	AssetID   *string
}

// MaintenanceService — сервис записей обслуживания.
type MaintenanceService struct {
	recordRepo repository.RecordRepository
	assetRepo  repository.AssetRepository
	templates  *TemplateService
	clock      Clock
	logger     *slog.Logger
}

// NewMaintenanceService создаёт сервис записей обслуживания.
func NewMaintenanceService(
	recordRepo repository.RecordRepository,
	assetRepo repository.AssetRepository,
	templates *TemplateService,
	clock Clock,
	logger *slog.Logger,
) *MaintenanceService {
	return &MaintenanceService{
		recordRepo: recordRepo,
		assetRepo:  assetRepo,
		templates:  templates,
		clock:      clock,
		logger:     logger.With(slog.String("component", "maintenance_service")),
	}
}

// Create создаёт запись обслуживания в статусе scheduled.
// Имя объекта снимается из справочника в AssetReference на момент
// создания. Если задан шаблон — встраивается свежее выполнение чек-листа.
func (s *MaintenanceService) Create(ctx context.Context, in CreateRecordInput) (*model.MaintenanceRecord, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: название записи не может быть пустым", ErrValidation)
	}
	if in.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: плановое время обязательно", ErrValidation)
	}
	if in.TemplateID != nil && len(in.ChecklistItems) > 0 {
		return nil, fmt.Errorf("%w: шаблон и ad hoc чек-лист взаимоисключающи", ErrValidation)
	}

	assetType, err := model.ParseAssetType(in.AssetType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err) //nolint:errorlint // намеренный двойной wrap
	}
	recurrence, err := model.ParseRecurrence(in.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err) //nolint:errorlint // намеренный двойной wrap
	}
	if !isUUID(in.AssetID) {
		return nil, fmt.Errorf("%w: идентификатор объекта должен быть UUID", ErrValidation)
	}
	if in.OriginActivityID != nil && !isUUID(*in.OriginActivityID) {
		return nil, fmt.Errorf("%w: идентификатор активности должен быть UUID", ErrValidation)
	}

	assetName, err := s.assetRepo.LookupName(ctx, assetType, in.AssetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: объект %s/%s не найден", ErrValidation, assetType, in.AssetID)
		}
		return nil, fmt.Errorf("поиск объекта обслуживания: %w", err)
	}

	var exec *model.ChecklistExecution
	switch {
	case in.TemplateID != nil:
		tpl, err := s.templates.Get(ctx, *in.TemplateID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: шаблон %s не найден", ErrValidation, *in.TemplateID)
			}
			return nil, err
		}
		if !tpl.IsActive {
			return nil, fmt.Errorf("%w: шаблон %s выведен из оборота", ErrValidation, tpl.ID)
		}
		exec = checklist.Instantiate(tpl)
	case len(in.ChecklistItems) > 0:
		exec, err = checklist.InstantiateAdHoc(in.ChecklistItems)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err) //nolint:errorlint // намеренный двойной wrap
		}
	}

	rec := &model.MaintenanceRecord{
		ID:     uuid.New().String(),
		Title:  in.Title,
		Asset:  model.AssetReference{Type: assetType, ID: in.AssetID, Name: assetName},
		Status: model.StatusScheduled,
		// Плановое время нормализуется в UTC
		ScheduledAt:      in.ScheduledAt.UTC(),
		Recurrence:       recurrence,
		Checklist:        exec,
		Notes:            in.Notes,
		TechnicianID:     in.TechnicianID,
		OriginActivityID: in.OriginActivityID,
	}

	if err := s.recordRepo.Create(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: запись с таким id уже существует", ErrConflict)
		}
		// Внешний ключ отверг template_id: шаблон удалён между чтением
		// (возможно, из кэша) и вставкой записи
		if errors.Is(err, repository.ErrReferenced) {
			return nil, fmt.Errorf("%w: шаблон удалён конкурентной операцией", ErrConflict)
		}
		return nil, fmt.Errorf("создание записи обслуживания: %w", err)
	}

	s.logger.Info("Запись обслуживания создана",
		slog.String("record_id", rec.ID),
		slog.String("asset_type", string(assetType)),
		slog.String("asset_id", in.AssetID),
		slog.Bool("has_checklist", exec != nil),
	)

	rec.Status = lifecycle.DeriveRecord(rec, s.clock.Now())
	return rec, nil
}

// Get возвращает запись с производным статусом.
func (s *MaintenanceService) Get(ctx context.Context, id string) (*model.MaintenanceRecord, error) {
	rec, err := s.getStored(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Status = lifecycle.DeriveRecord(rec, s.clock.Now())
	return rec, nil
}

// List возвращает записи с фильтрацией, пагинацией и производными статусами.
func (s *MaintenanceService) List(ctx context.Context, f RecordListFilter, limit, offset int) ([]*model.MaintenanceRecord, int, error) {
	if f.Status != nil && !model.IsStoredStatus(model.Status(*f.Status)) {
		return nil, 0, fmt.Errorf("%w: недопустимый статус %q, допустимые: scheduled, in_progress, completed", ErrValidation, *f.Status)
	}
	if f.AssetType != nil {
		if _, err := model.ParseAssetType(*f.AssetType); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrValidation, err) //nolint:errorlint // намеренный двойной wrap
		}
	}

	filter := repository.RecordFilter{
		Status:    f.Status,
		AssetType: f.AssetType,
		AssetID:   f.AssetID,
	}

	recs, err := s.recordRepo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка записей: %w", err)
	}

	total, err := s.recordRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт записей: %w", err)
	}

	now := s.clock.Now()
	for _, rec := range recs {
		rec.Status = lifecycle.DeriveRecord(rec, now)
	}

	return recs, total, nil
}

// Start переводит запись scheduled → in_progress.
// Повторный запуск и запуск завершённой записи отклоняются.
func (s *MaintenanceService) Start(ctx context.Context, id string, technicianID *string) (*model.MaintenanceRecord, error) {
	rec, err := s.getStored(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := lifecycle.CheckTransition(rec.Status, model.StatusInProgress); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransition, err) //nolint:errorlint // намеренный двойной wrap
	}

	expected := rec.Status
	rec.Status = model.StatusInProgress
	if technicianID != nil {
		rec.TechnicianID = technicianID
	}

	if err := s.updateFrom(ctx, rec, expected); err != nil {
		return nil, err
	}

	s.logger.Info("Запись обслуживания начата",
		slog.String("record_id", id),
	)

	rec.Status = lifecycle.DeriveRecord(rec, s.clock.Now())
	return rec, nil
}

// UpdateChecklist применяет ответы к чек-листу записи.
// Допускается только для хранимого статуса scheduled или in_progress;
// статус записи при этом не меняется.
func (s *MaintenanceService) UpdateChecklist(ctx context.Context, id string, responses []model.ItemResponse) (*model.MaintenanceRecord, error) {
	rec, err := s.getStored(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.Status == model.StatusCompleted {
		return nil, fmt.Errorf("%w: чек-лист завершённой записи неизменяем", ErrInvalidTransition)
	}
	if rec.Checklist == nil {
		return nil, fmt.Errorf("%w: запись не содержит чек-листа", ErrValidation)
	}

	updated, err := checklist.Apply(rec.Checklist, responses)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err) //nolint:errorlint // намеренный двойной wrap
	}
	rec.Checklist = updated

	if err := s.updateFrom(ctx, rec, rec.Status); err != nil {
		return nil, err
	}

	s.logger.Info("Чек-лист записи обновлён",
		slog.String("record_id", id),
		slog.Int("progress", updated.Progress),
	)

	rec.Status = lifecycle.DeriveRecord(rec, s.clock.Now())
	return rec, nil
}

// Complete завершает запись: scheduled|in_progress → completed.
// Повторное завершение отклоняется с ErrAlreadyCompleted, метка времени
// первого завершения не меняется. finalPhotos дописываются к имеющимся,
// finalNotes перезаписывают заметки только если переданы.
// Полнота чек-листа завершение не блокирует.
//
// Для повторяющихся работ вторым значением возвращается плановое время
// следующего обслуживания (от планового, не от фактического завершения);
// создание следующей записи — решение вызывающей стороны.
func (s *MaintenanceService) Complete(ctx context.Context, id string, finalNotes *string, finalPhotos []string) (*model.MaintenanceRecord, *time.Time, error) {
	rec, err := s.getStored(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if rec.Status == model.StatusCompleted {
		return nil, nil, ErrAlreadyCompleted
	}

	expected := rec.Status
	now := s.clock.Now()
	rec.Status = model.StatusCompleted
	rec.CompletedAt = &now
	if finalNotes != nil {
		rec.Notes = *finalNotes
	}
	rec.Photos = append(rec.Photos, finalPhotos...)

	if err := s.updateFrom(ctx, rec, expected); err != nil {
		return nil, nil, err
	}

	var next *time.Time
	if n, ok := lifecycle.NextOccurrence(rec.ScheduledAt, rec.Recurrence); ok {
		next = &n
	}

	attrs := []any{
		slog.String("record_id", id),
	}
	if rec.Checklist != nil {
		// Полнота чек-листа — справочная информация, не ворота
		attrs = append(attrs, slog.Bool("checklist_complete", checklist.IsComplete(rec.Checklist)))
	}
	if next != nil {
		attrs = append(attrs, slog.Time("next_occurrence", *next))
	}
	s.logger.Info("Запись обслуживания завершена", attrs...)

	return rec, next, nil
}

// Delete удаляет запись без ограничений по статусу —
// административная коррекция, не бизнес-правило.
func (s *MaintenanceService) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	if err := s.recordRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление записи: %w", err)
	}

	s.logger.Info("Запись обслуживания удалена",
		slog.String("record_id", id),
	)

	return nil
}

// AttachPhoto дописывает URL фотографии к общему списку фотографий
// записи. Фотографии завершённой записи неизменяемы.
func (s *MaintenanceService) AttachPhoto(ctx context.Context, id, url string) (*model.MaintenanceRecord, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: пустой URL фотографии", ErrValidation)
	}

	rec, err := s.getStored(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.Status == model.StatusCompleted {
		return nil, fmt.Errorf("%w: фотографии завершённой записи неизменяемы", ErrInvalidTransition)
	}

	rec.Photos = append(rec.Photos, url)

	if err := s.updateFrom(ctx, rec, rec.Status); err != nil {
		return nil, err
	}

	s.logger.Info("Фотография прикреплена к записи",
		slog.String("record_id", id),
		slog.Int("photos", len(rec.Photos)),
	)

	rec.Status = lifecycle.DeriveRecord(rec, s.clock.Now())
	return rec, nil
}

// getStored возвращает запись с хранимым статусом (без производного overdue).
func (s *MaintenanceService) getStored(ctx context.Context, id string) (*model.MaintenanceRecord, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	rec, err := s.recordRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение записи: %w", err)
	}
	return rec, nil
}

// updateFrom записывает изменения с оптимистической проверкой статуса.
// Потерянная строка означает гонку с конкурентной операцией.
func (s *MaintenanceService) updateFrom(ctx context.Context, rec *model.MaintenanceRecord, expected model.Status) error {
	if err := s.recordRepo.UpdateFrom(ctx, rec, expected); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: запись изменена или удалена конкурентной операцией", ErrConflict)
		}
		return fmt.Errorf("обновление записи: %w", err)
	}
	return nil
}
