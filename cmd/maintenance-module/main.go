// Точка входа Maintenance Module — модуль обслуживания системы Upkeep.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт сервисный слой и API handlers, запускает HTTP-сервер
// с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/api/handlers"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/config"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/database"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/photostore"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/repository"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/server"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Maintenance Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Repositories
	templateRepo := repository.NewTemplateRepository(pool)
	recordRepo := repository.NewRecordRepository(pool)
	assetRepo := repository.NewAssetRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 6. Хранилище фотографий
	photoStore, err := photostore.New(cfg.PhotoDir, cfg.PhotoBaseURL)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища фотографий",
			slog.String("dir", cfg.PhotoDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Хранилище фотографий готово",
		slog.String("dir", photoStore.Dir()),
		slog.String("base_url", photoStore.BaseURL()),
	)

	// 7. Services
	clock := service.SystemClock{}
	templateCache := service.NewTemplateCache(cfg.TemplateCacheSize, cfg.TemplateCacheTTL)
	templatesSvc := service.NewTemplateService(
		templateRepo, recordRepo, txRunner, templateCache,
		clock,
		logger,
	)
	recordsSvc := service.NewMaintenanceService(
		recordRepo, assetRepo, templatesSvc,
		clock,
		logger,
	)
	scheduleSvc := service.NewScheduleService(recordRepo, clock, logger)

	// 8. Readiness checker (PostgreSQL)
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker)

	// 9. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		templatesSvc,
		recordsSvc,
		scheduleSvc,
		photoStore,
		logger,
	)

	// 10. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, photoStore.Dir())
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Maintenance Module остановлен")
}
