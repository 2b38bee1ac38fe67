package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/config"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/database"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/repository"
)

// integrationEnv — сервисный слой поверх настоящей БД: реальные
// репозитории, транзакции и кэш шаблонов вместо in-memory фейков.
type integrationEnv struct {
	pool      *pgxpool.Pool
	clock     *fixedClock
	templates *TemplateService
	records   *MaintenanceService
	tplRepo   repository.TemplateRepository
	// genID — UUID генератора, заранее посеянного в справочник
	genID string
}

// setupIntegrationEnv запускает PostgreSQL контейнер, применяет миграции
// и собирает сервисный слой на реальных репозиториях.
func setupIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("upkeep_test"),
		postgres.WithUsername("upkeep"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	os.Setenv("MM_DB_HOST", host)
	os.Setenv("MM_DB_PORT", port.Port())
	os.Setenv("MM_DB_NAME", "upkeep_test")
	os.Setenv("MM_DB_USER", "upkeep")
	os.Setenv("MM_DB_PASSWORD", "test-password")
	os.Setenv("MM_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	siteID := uuid.New().String()
	if _, err := pool.Exec(ctx,
		`INSERT INTO sites (id, name, address) VALUES ($1, $2, $3)`,
		siteID, "Площадка Север-1", "Тестовый адрес",
	); err != nil {
		t.Fatalf("Создание площадки: %v", err)
	}
	genID := uuid.New().String()
	if _, err := pool.Exec(ctx,
		`INSERT INTO generators (id, site_id, name, model) VALUES ($1, $2, $3, $4)`,
		genID, siteID, "Генератор G42", "DG-100",
	); err != nil {
		t.Fatalf("Создание генератора: %v", err)
	}

	env := &integrationEnv{
		pool:    pool,
		clock:   &fixedClock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)},
		tplRepo: repository.NewTemplateRepository(pool),
		genID:   genID,
	}
	cache := NewTemplateCache(16, time.Minute)
	recordRepo := repository.NewRecordRepository(pool)
	env.templates = NewTemplateService(env.tplRepo, recordRepo, repository.NewTxRunner(pool), cache, env.clock, logger)
	env.records = NewMaintenanceService(recordRepo, repository.NewAssetRepository(pool), env.templates, env.clock, logger)
	return env
}

// Шаблон нельзя удалить, пока на него ссылаются записи обслуживания;
// после удаления последней записи шаблон удаляется.
func TestTemplateDeleteUsageGuard(t *testing.T) {
	env := setupIntegrationEnv(t)
	ctx := context.Background()

	tpl, err := env.templates.Create(ctx, "ТО генератора", "", generatorCheckItems())
	if err != nil {
		t.Fatalf("Create(template) вернул ошибку: %v", err)
	}
	rec, err := env.records.Create(ctx, CreateRecordInput{
		Title:       "ТО генератора G42",
		AssetType:   "generator",
		AssetID:     env.genID,
		ScheduledAt: env.clock.t.AddDate(0, 0, 7),
		TemplateID:  &tpl.ID,
	})
	if err != nil {
		t.Fatalf("Create(record) вернул ошибку: %v", err)
	}

	if err := env.templates.Delete(ctx, tpl.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("Delete() используемого шаблона = %v, ожидается ErrConflict", err)
	}
	if _, err := env.templates.Get(ctx, tpl.ID); err != nil {
		t.Fatalf("шаблон не должен исчезнуть после отклонённого удаления: %v", err)
	}

	if err := env.records.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete(record) вернул ошибку: %v", err)
	}
	if err := env.templates.Delete(ctx, tpl.ID); err != nil {
		t.Fatalf("Delete() после удаления записи вернул ошибку: %v", err)
	}
	if _, err := env.templates.Get(ctx, tpl.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() удалённого шаблона = %v, ожидается ErrNotFound", err)
	}
}

// Создание записи по шаблону, удалённому после прогрева кэша: чтение
// шаблона отдаёт устаревшую копию, но вставку отклоняет внешний ключ.
func TestRecordCreateAgainstDeletedTemplate(t *testing.T) {
	env := setupIntegrationEnv(t)
	ctx := context.Background()

	tpl, err := env.templates.Create(ctx, "ТО генератора", "", generatorCheckItems())
	if err != nil {
		t.Fatalf("Create(template) вернул ошибку: %v", err)
	}
	if _, err := env.templates.Get(ctx, tpl.ID); err != nil {
		t.Fatalf("прогрев кэша: %v", err)
	}

	// Удаляем шаблон напрямую через репозиторий: кэш сервиса об этом не узнаёт
	if err := env.tplRepo.Delete(ctx, tpl.ID); err != nil {
		t.Fatalf("Delete(repo) вернул ошибку: %v", err)
	}

	_, err = env.records.Create(ctx, CreateRecordInput{
		Title:       "ТО по удалённому шаблону",
		AssetType:   "generator",
		AssetID:     env.genID,
		ScheduledAt: env.clock.t.AddDate(0, 0, 7),
		TemplateID:  &tpl.ID,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Create() по удалённому шаблону = %v, ожидается ErrConflict", err)
	}
}
