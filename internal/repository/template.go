// template.go — репозиторий шаблонов чек-листов (таблица checklist_templates).
// Пункты шаблона сериализуются в JSONB-колонку items.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
)

// TemplateRepository — интерфейс CRUD для таблицы checklist_templates.
type TemplateRepository interface {
	// Create создаёт новый шаблон.
	Create(ctx context.Context, tpl *model.Template) error
	// GetByID возвращает шаблон по UUID.
	GetByID(ctx context.Context, id string) (*model.Template, error)
	// List возвращает список шаблонов; activeOnly = true отфильтровывает
	// выведенные из оборота.
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*model.Template, error)
	// Count возвращает количество шаблонов с учётом фильтра.
	Count(ctx context.Context, activeOnly bool) (int, error)
	// Update полностью заменяет метаданные и список пунктов шаблона.
	Update(ctx context.Context, tpl *model.Template) error
	// SetActive включает/выключает шаблон (вывод из оборота).
	SetActive(ctx context.Context, id string, active bool) error
	// Delete удаляет шаблон.
	Delete(ctx context.Context, id string) error
}

// templateRepo — реализация TemplateRepository.
type templateRepo struct {
	db DBTX
}

// NewTemplateRepository создаёт репозиторий шаблонов.
func NewTemplateRepository(db DBTX) TemplateRepository {
	return &templateRepo{db: db}
}

func (r *templateRepo) Create(ctx context.Context, tpl *model.Template) error {
	items, err := json.Marshal(tpl.Items)
	if err != nil {
		return fmt.Errorf("ошибка сериализации пунктов шаблона: %w", err)
	}

	query := `
		INSERT INTO checklist_templates (id, name, description, is_active, items)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		tpl.ID, tpl.Name, tpl.Description, tpl.IsActive, items,
	).Scan(&tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: шаблон с таким id уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания шаблона: %w", err)
	}
	return nil
}

func (r *templateRepo) GetByID(ctx context.Context, id string) (*model.Template, error) {
	query := `
		SELECT id, name, description, is_active, items, created_at, updated_at
		FROM checklist_templates
		WHERE id = $1`

	return scanTemplate(r.db.QueryRow(ctx, query, id))
}

func (r *templateRepo) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*model.Template, error) {
	where := ""
	if activeOnly {
		where = "WHERE is_active"
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, is_active, items, created_at, updated_at
		FROM checklist_templates
		%s
		ORDER BY name, id
		LIMIT $1 OFFSET $2`, where)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка шаблонов: %w", err)
	}
	defer rows.Close()

	var result []*model.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tpl)
	}
	return result, rows.Err()
}

func (r *templateRepo) Count(ctx context.Context, activeOnly bool) (int, error) {
	where := ""
	if activeOnly {
		where = "WHERE is_active"
	}

	var count int
	err := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM checklist_templates %s`, where)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта шаблонов: %w", err)
	}
	return count, nil
}

func (r *templateRepo) Update(ctx context.Context, tpl *model.Template) error {
	items, err := json.Marshal(tpl.Items)
	if err != nil {
		return fmt.Errorf("ошибка сериализации пунктов шаблона: %w", err)
	}

	query := `
		UPDATE checklist_templates
		SET name = $2, description = $3, is_active = $4, items = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err = r.db.QueryRow(ctx, query,
		tpl.ID, tpl.Name, tpl.Description, tpl.IsActive, items,
	).Scan(&tpl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления шаблона: %w", err)
	}
	return nil
}

func (r *templateRepo) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE checklist_templates SET is_active = $2, updated_at = now() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("ошибка изменения активности шаблона: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *templateRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM checklist_templates WHERE id = $1`, id)
	if err != nil {
		// Внешний ключ maintenance_records.template_id: на шаблон всё ещё
		// ссылаются записи обслуживания
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: на шаблон ссылаются записи обслуживания", ErrReferenced)
		}
		return fmt.Errorf("ошибка удаления шаблона: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanTemplate сканирует одну строку checklist_templates.
func scanTemplate(row pgx.Row) (*model.Template, error) {
	tpl := &model.Template{}
	var items []byte

	err := row.Scan(
		&tpl.ID, &tpl.Name, &tpl.Description, &tpl.IsActive, &items,
		&tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования шаблона: %w", err)
	}

	if err := json.Unmarshal(items, &tpl.Items); err != nil {
		return nil, fmt.Errorf("ошибка десериализации пунктов шаблона %s: %w", tpl.ID, err)
	}
	return tpl, nil
}
