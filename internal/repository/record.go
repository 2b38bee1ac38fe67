// record.go — репозиторий записей обслуживания (таблица maintenance_records).
// Чек-лист и список фотографий сериализуются в JSONB.
// template_id дублируется из чек-листа в отдельную колонку —
// по ней работают индекс и сканы Usage Guard.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
)

// RecordFilter — фильтры списка записей обслуживания.
type RecordFilter struct {
	// Status — хранимый статус (scheduled, in_progress, completed)
	Status *string
	// AssetType — тип объекта (site, generator)
	AssetType *string
	// AssetID — идентификатор объекта
	AssetID *string
}

// TemplateUsage — одна запись, ссылающаяся на шаблон (для usage report).
type TemplateUsage struct {
	RecordID    string
	Title       string
	Status      model.Status
	ScheduledAt time.Time
}

// RecordRepository — интерфейс доступа к записям обслуживания.
type RecordRepository interface {
	// Create создаёт новую запись.
	Create(ctx context.Context, rec *model.MaintenanceRecord) error
	// GetByID возвращает запись по UUID.
	GetByID(ctx context.Context, id string) (*model.MaintenanceRecord, error)
	// List возвращает список записей с фильтрацией и пагинацией.
	List(ctx context.Context, f RecordFilter, limit, offset int) ([]*model.MaintenanceRecord, error)
	// Count возвращает количество записей с учётом фильтров.
	Count(ctx context.Context, f RecordFilter) (int, error)
	// UpdateFrom записывает изменяемые поля записи с оптимистической
	// проверкой: строка обновляется, только если её текущий статус равен
	// expected. Возвращает ErrNotFound, если строка не найдена или статус
	// уже изменён конкурентной операцией.
	UpdateFrom(ctx context.Context, rec *model.MaintenanceRecord, expected model.Status) error
	// Delete удаляет запись без ограничений по статусу.
	Delete(ctx context.Context, id string) error
	// CountByTemplate возвращает количество записей, чей чек-лист
	// инстанцирован из шаблона (по всей истории, включая completed).
	CountByTemplate(ctx context.Context, templateID string) (int, error)
	// ListByTemplate возвращает записи, ссылающиеся на шаблон.
	ListByTemplate(ctx context.Context, templateID string) ([]TemplateUsage, error)
	// ListUpcoming возвращает незавершённые записи с плановым временем
	// в [from, to], по возрастанию планового времени; при равенстве —
	// по идентификатору (детерминированный порядок).
	ListUpcoming(ctx context.Context, from, to time.Time) ([]*model.MaintenanceRecord, error)
}

// recordRepo — реализация RecordRepository.
type recordRepo struct {
	db DBTX
}

// NewRecordRepository создаёт репозиторий записей обслуживания.
func NewRecordRepository(db DBTX) RecordRepository {
	return &recordRepo{db: db}
}

const recordColumns = `id, title, asset_type, asset_id, asset_name, status,
	scheduled_at, completed_at, recurrence, template_id, checklist,
	notes, technician_id, photos, origin_activity_id, created_at, updated_at`

func (r *recordRepo) Create(ctx context.Context, rec *model.MaintenanceRecord) error {
	checklist, templateID, err := marshalChecklist(rec.Checklist)
	if err != nil {
		return err
	}
	photos, err := json.Marshal(photosOrEmpty(rec.Photos))
	if err != nil {
		return fmt.Errorf("ошибка сериализации фотографий: %w", err)
	}

	query := `
		INSERT INTO maintenance_records (id, title, asset_type, asset_id, asset_name,
			status, scheduled_at, completed_at, recurrence, template_id, checklist,
			notes, technician_id, photos, origin_activity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		rec.ID, rec.Title, rec.Asset.Type, rec.Asset.ID, rec.Asset.Name,
		rec.Status, rec.ScheduledAt, rec.CompletedAt, rec.Recurrence,
		templateID, checklist,
		rec.Notes, rec.TechnicianID, photos, rec.OriginActivityID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запись с таким id уже существует", ErrConflict)
		}
		// template_id ссылается на удалённый шаблон — проигранная гонка
		// с удалением шаблона
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: шаблон чек-листа не существует", ErrReferenced)
		}
		return fmt.Errorf("ошибка создания записи обслуживания: %w", err)
	}
	return nil
}

func (r *recordRepo) GetByID(ctx context.Context, id string) (*model.MaintenanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM maintenance_records WHERE id = $1`, recordColumns)
	return scanRecord(r.db.QueryRow(ctx, query, id))
}

func (r *recordRepo) List(ctx context.Context, f RecordFilter, limit, offset int) ([]*model.MaintenanceRecord, error) {
	where, args := buildRecordFilter(f)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM maintenance_records
		%s
		ORDER BY scheduled_at DESC, id
		LIMIT $%d OFFSET $%d`, recordColumns, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка записей: %w", err)
	}
	defer rows.Close()

	var result []*model.MaintenanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *recordRepo) Count(ctx context.Context, f RecordFilter) (int, error) {
	where, args := buildRecordFilter(f)

	var count int
	err := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM maintenance_records %s`, where), args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return count, nil
}

func (r *recordRepo) UpdateFrom(ctx context.Context, rec *model.MaintenanceRecord, expected model.Status) error {
	checklist, templateID, err := marshalChecklist(rec.Checklist)
	if err != nil {
		return err
	}
	photos, err := json.Marshal(photosOrEmpty(rec.Photos))
	if err != nil {
		return fmt.Errorf("ошибка сериализации фотографий: %w", err)
	}

	query := `
		UPDATE maintenance_records
		SET title = $3, status = $4, scheduled_at = $5, completed_at = $6,
			recurrence = $7, template_id = $8, checklist = $9, notes = $10,
			technician_id = $11, photos = $12, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING updated_at`

	err = r.db.QueryRow(ctx, query,
		rec.ID, expected,
		rec.Title, rec.Status, rec.ScheduledAt, rec.CompletedAt,
		rec.Recurrence, templateID, checklist, rec.Notes,
		rec.TechnicianID, photos,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления записи: %w", err)
	}
	return nil
}

func (r *recordRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM maintenance_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recordRepo) CountByTemplate(ctx context.Context, templateID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM maintenance_records WHERE template_id = $1`, templateID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта использований шаблона: %w", err)
	}
	return count, nil
}

func (r *recordRepo) ListByTemplate(ctx context.Context, templateID string) ([]TemplateUsage, error) {
	query := `
		SELECT id, title, status, scheduled_at
		FROM maintenance_records
		WHERE template_id = $1
		ORDER BY scheduled_at DESC, id`

	rows, err := r.db.Query(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения использований шаблона: %w", err)
	}
	defer rows.Close()

	var result []TemplateUsage
	for rows.Next() {
		var u TemplateUsage
		if err := rows.Scan(&u.RecordID, &u.Title, &u.Status, &u.ScheduledAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования использования шаблона: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *recordRepo) ListUpcoming(ctx context.Context, from, to time.Time) ([]*model.MaintenanceRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM maintenance_records
		WHERE status <> 'completed' AND scheduled_at >= $1 AND scheduled_at <= $2
		ORDER BY scheduled_at, id`, recordColumns)

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения предстоящих работ: %w", err)
	}
	defer rows.Close()

	var result []*model.MaintenanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// buildRecordFilter строит динамический WHERE из фильтров списка.
func buildRecordFilter(f RecordFilter) (string, []any) {
	var conditions []string
	var args []any
	argNum := 1

	if f.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *f.Status)
		argNum++
	}
	if f.AssetType != nil {
		conditions = append(conditions, fmt.Sprintf("asset_type = $%d", argNum))
		args = append(args, *f.AssetType)
		argNum++
	}
	if f.AssetID != nil {
		conditions = append(conditions, fmt.Sprintf("asset_id = $%d", argNum))
		args = append(args, *f.AssetID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// marshalChecklist сериализует чек-лист и извлекает template_id
// для дублирующей колонки. Для записи без чек-листа — (nil, nil).
func marshalChecklist(exec *model.ChecklistExecution) ([]byte, *string, error) {
	if exec == nil {
		return nil, nil, nil
	}
	data, err := json.Marshal(exec)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка сериализации чек-листа: %w", err)
	}
	return data, exec.TemplateID, nil
}

// photosOrEmpty гарантирует сериализацию в [], а не null.
func photosOrEmpty(photos []string) []string {
	if photos == nil {
		return []string{}
	}
	return photos
}

// scanRecord сканирует одну строку maintenance_records.
func scanRecord(row pgx.Row) (*model.MaintenanceRecord, error) {
	rec := &model.MaintenanceRecord{}
	var checklist []byte
	var photos []byte
	var templateID *string // дублирующая колонка, восстанавливается из чек-листа

	err := row.Scan(
		&rec.ID, &rec.Title, &rec.Asset.Type, &rec.Asset.ID, &rec.Asset.Name,
		&rec.Status, &rec.ScheduledAt, &rec.CompletedAt, &rec.Recurrence,
		&templateID, &checklist,
		&rec.Notes, &rec.TechnicianID, &photos, &rec.OriginActivityID,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
	}

	if checklist != nil {
		rec.Checklist = &model.ChecklistExecution{}
		if err := json.Unmarshal(checklist, rec.Checklist); err != nil {
			return nil, fmt.Errorf("ошибка десериализации чек-листа записи %s: %w", rec.ID, err)
		}
	}
	if photos != nil {
		if err := json.Unmarshal(photos, &rec.Photos); err != nil {
			return nil, fmt.Errorf("ошибка десериализации фотографий записи %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}
