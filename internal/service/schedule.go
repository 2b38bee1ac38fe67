// schedule.go — сервис расписания: предстоящие работы в ближайшие N дней.
// Overdue вычисляется лениво на чтении, фонового планировщика нет.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/lifecycle"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/repository"
)

// Границы горизонта запроса upcoming в днях.
const (
	minUpcomingDays = 1
	maxUpcomingDays = 365
)

// ScheduleService — сервис запросов расписания.
type ScheduleService struct {
	recordRepo repository.RecordRepository
	clock      Clock
	logger     *slog.Logger
}

// NewScheduleService создаёт сервис расписания.
func NewScheduleService(recordRepo repository.RecordRepository, clock Clock, logger *slog.Logger) *ScheduleService {
	return &ScheduleService{
		recordRepo: recordRepo,
		clock:      clock,
		logger:     logger.With(slog.String("component", "schedule_service")),
	}
}

// Upcoming возвращает незавершённые записи с плановым временем
// в [now, now + withinDays], по возрастанию планового времени
// (при равенстве — по id). Статусы — производные.
func (s *ScheduleService) Upcoming(ctx context.Context, withinDays int) ([]*model.MaintenanceRecord, error) {
	if withinDays < minUpcomingDays || withinDays > maxUpcomingDays {
		return nil, fmt.Errorf("%w: горизонт %d вне допустимого диапазона %d-%d дней",
			ErrValidation, withinDays, minUpcomingDays, maxUpcomingDays)
	}

	now := s.clock.Now()
	to := now.AddDate(0, 0, withinDays)

	recs, err := s.recordRepo.ListUpcoming(ctx, now, to)
	if err != nil {
		return nil, fmt.Errorf("получение предстоящих работ: %w", err)
	}

	for _, rec := range recs {
		rec.Status = lifecycle.DeriveRecord(rec, now)
	}

	return recs, nil
}
