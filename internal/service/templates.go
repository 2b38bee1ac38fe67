// templates.go — сервис реестра шаблонов чек-листов.
// CRUD шаблонов, дублирование, вывод из оборота и защита от удаления
// используемого шаблона (usage guard).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/lifecycle"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/repository"
)

// TemplateUsageReport — отчёт об использовании шаблона записями
// обслуживания. Статусы записей — производные (с учётом overdue).
type TemplateUsageReport struct {
	TemplateID string
	InUse      bool
	Records    []repository.TemplateUsage
}

// TemplateService — сервис реестра шаблонов.
type TemplateService struct {
	templateRepo repository.TemplateRepository
	recordRepo   repository.RecordRepository
	txRunner     *repository.TxRunner
	cache        *TemplateCache
	clock        Clock
	logger       *slog.Logger
}

// NewTemplateService создаёт сервис шаблонов.
func NewTemplateService(
	templateRepo repository.TemplateRepository,
	recordRepo repository.RecordRepository,
	txRunner *repository.TxRunner,
	cache *TemplateCache,
	clock Clock,
	logger *slog.Logger,
) *TemplateService {
	return &TemplateService{
		templateRepo: templateRepo,
		recordRepo:   recordRepo,
		txRunner:     txRunner,
		cache:        cache,
		clock:        clock,
		logger:       logger.With(slog.String("component", "template_service")),
	}
}

// Create создаёт новый шаблон с валидацией имени и списка пунктов.
// Пунктам без идентификатора присваиваются свежие UUID.
func (s *TemplateService) Create(ctx context.Context, name, description string, items []model.ChecklistItem) (*model.Template, error) {
	tpl := &model.Template{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		IsActive:    true,
		Items:       model.CloneItems(items),
	}
	assignItemIDs(tpl.Items)

	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err) //nolint:errorlint // намеренный двойной wrap
	}

	if err := s.templateRepo.Create(ctx, tpl); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: шаблон с таким id уже существует", ErrConflict)
		}
		return nil, fmt.Errorf("создание шаблона: %w", err)
	}

	s.logger.Info("Шаблон создан",
		slog.String("template_id", tpl.ID),
		slog.String("name", tpl.Name),
		slog.Int("items", len(tpl.Items)),
	)

	return tpl, nil
}

// Get возвращает шаблон по id. Читает через LRU-кэш.
func (s *TemplateService) Get(ctx context.Context, id string) (*model.Template, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	if tpl, ok := s.cache.Get(id); ok {
		return tpl, nil
	}

	tpl, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение шаблона: %w", err)
	}

	s.cache.Set(id, tpl)
	return tpl, nil
}

// List возвращает список шаблонов с пагинацией.
// activeOnly = true скрывает выведенные из оборота.
func (s *TemplateService) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*model.Template, int, error) {
	templates, err := s.templateRepo.List(ctx, activeOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка шаблонов: %w", err)
	}

	total, err := s.templateRepo.Count(ctx, activeOnly)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт шаблонов: %w", err)
	}

	return templates, total, nil
}

// Replace полностью заменяет метаданные и список пунктов шаблона.
// Валидация — та же, что при создании. Уже инстанцированные выполнения
// несут собственный снимок пунктов и не затрагиваются.
func (s *TemplateService) Replace(ctx context.Context, id, name, description string, items []model.ChecklistItem) (*model.Template, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}

	tpl, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение шаблона для замены: %w", err)
	}

	tpl.Name = name
	tpl.Description = description
	tpl.Items = model.CloneItems(items)
	assignItemIDs(tpl.Items)

	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err) //nolint:errorlint // намеренный двойной wrap
	}

	if err := s.templateRepo.Update(ctx, tpl); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("замена шаблона: %w", err)
	}

	s.cache.Delete(id)

	s.logger.Info("Шаблон заменён",
		slog.String("template_id", id),
		slog.Int("items", len(tpl.Items)),
	)

	return tpl, nil
}

// Duplicate клонирует шаблон: новый id шаблона, свежие id пунктов
// (во избежание коллизий идентификаторов между шаблонами).
// Имя по умолчанию — "<оригинал> (Copy)".
func (s *TemplateService) Duplicate(ctx context.Context, id string, newName *string) (*model.Template, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}

	src, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение шаблона для дублирования: %w", err)
	}

	name := src.Name + " (Copy)"
	if newName != nil && *newName != "" {
		name = *newName
	}

	items := model.CloneItems(src.Items)
	for i := range items {
		items[i].ID = uuid.New().String()
	}

	dup := &model.Template{
		ID:          uuid.New().String(),
		Name:        name,
		Description: src.Description,
		IsActive:    true,
		Items:       items,
	}

	if err := s.templateRepo.Create(ctx, dup); err != nil {
		return nil, fmt.Errorf("создание дубликата шаблона: %w", err)
	}

	s.logger.Info("Шаблон продублирован",
		slog.String("source_template_id", id),
		slog.String("template_id", dup.ID),
		slog.String("name", dup.Name),
	)

	return dup, nil
}

// Archive выводит шаблон из оборота: он скрывается из list(activeOnly)
// и не может использоваться для новых записей, но остаётся доступным
// для истории. Мягкая альтернатива удалению.
func (s *TemplateService) Archive(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	if err := s.templateRepo.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("вывод шаблона из оборота: %w", err)
	}

	s.cache.Delete(id)

	s.logger.Info("Шаблон выведен из оборота",
		slog.String("template_id", id),
	)

	return nil
}

// IsInUse возвращает true, если хоть одна запись обслуживания (включая
// завершённые — вся история) инстанцировала чек-лист из этого шаблона.
func (s *TemplateService) IsInUse(ctx context.Context, id string) (bool, error) {
	count, err := s.recordRepo.CountByTemplate(ctx, id)
	if err != nil {
		return false, fmt.Errorf("проверка использования шаблона: %w", err)
	}
	return count > 0, nil
}

// UsageReport возвращает записи, ссылающиеся на шаблон, для показа
// пользователю перед попыткой удаления.
func (s *TemplateService) UsageReport(ctx context.Context, id string) (*TemplateUsageReport, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	if _, err := s.templateRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение шаблона для отчёта: %w", err)
	}

	usages, err := s.recordRepo.ListByTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("получение использований шаблона: %w", err)
	}

	now := s.clock.Now()
	for i := range usages {
		usages[i].Status = lifecycle.Derive(usages[i].Status, usages[i].ScheduledAt, now)
	}

	return &TemplateUsageReport{
		TemplateID: id,
		InUse:      len(usages) > 0,
		Records:    usages,
	}, nil
}

// Delete удаляет шаблон. Проверка использования и удаление выполняются
// в одной транзакции: создание записи по шаблону не может проскочить
// между проверкой и удалением.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrNotFound
	}

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		count, err := repository.NewRecordRepository(tx).CountByTemplate(ctx, id)
		if err != nil {
			return fmt.Errorf("проверка использования шаблона: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: шаблон используется записями обслуживания (%d)", ErrConflict, count)
		}

		if err := repository.NewTemplateRepository(tx).Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			// Запись по шаблону успела закоммититься после подсчёта —
			// внешний ключ добил гонку
			if errors.Is(err, repository.ErrReferenced) {
				return fmt.Errorf("%w: шаблон используется записями обслуживания", ErrConflict)
			}
			return fmt.Errorf("удаление шаблона: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Delete(id)

	s.logger.Info("Шаблон удалён",
		slog.String("template_id", id),
	)

	return nil
}

// assignItemIDs присваивает UUID пунктам без идентификатора.
func assignItemIDs(items []model.ChecklistItem) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
	}
}

// isUUID проверяет форму идентификатора до обращения к БД:
// UUID-колонки не принимают произвольные строки, и без проверки
// мусорный id всплывал бы как внутренняя ошибка вместо NotFound.
func isUUID(s string) bool {
	return uuid.Validate(s) == nil
}
