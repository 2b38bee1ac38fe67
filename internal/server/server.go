// Пакет server — HTTP-сервер Maintenance Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/api/handlers"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/api/middleware"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/config"
)

// Server — HTTP-сервер Maintenance Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// photoDir — директория фотографий для раздачи статики под PhotoBaseURL.
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, photoDir string) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую, без API Gateway
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/templates", func(r chi.Router) {
			r.Post("/", handler.CreateTemplate)
			r.Get("/", handler.ListTemplates)
			r.Get("/{id}", handler.GetTemplate)
			r.Put("/{id}", handler.ReplaceTemplate)
			r.Delete("/{id}", handler.DeleteTemplate)
			r.Post("/{id}/duplicate", handler.DuplicateTemplate)
			r.Put("/{id}/archive", handler.ArchiveTemplate)
			r.Get("/{id}/usage", handler.TemplateUsage)
		})

		r.Route("/records", func(r chi.Router) {
			r.Post("/", handler.CreateRecord)
			r.Get("/", handler.ListRecords)
			r.Get("/{id}", handler.GetRecord)
			r.Delete("/{id}", handler.DeleteRecord)
			r.Post("/{id}/start", handler.StartRecord)
			r.Post("/{id}/complete", handler.CompleteRecord)
			r.Put("/{id}/checklist", handler.UpdateChecklist)
			r.Post("/{id}/photos", handler.UploadRecordPhoto)
		})

		r.Get("/schedule/upcoming", handler.UpcomingRecords)
	})

	// Раздача сохранённых фотографий
	if photoDir != "" {
		prefix := strings.TrimRight(cfg.PhotoBaseURL, "/")
		fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(photoDir)))
		router.Get(prefix+"/*", fileServer.ServeHTTP)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
