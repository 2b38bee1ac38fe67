// Пакет lifecycle — конечный автомат статусов записи обслуживания.
//
// Жизненный цикл: scheduled → in_progress → completed.
// Допускается также прямой переход scheduled → completed
// (работа завершена без формального «начала»).
//
// overdue — не четвёртое хранимое состояние, а производное представление:
// вычисляется функцией Derive из хранимого статуса, планового времени
// и текущего момента. Это исключает «зависание» записи в overdue
// после завершения и дрейф при неотработавшей фоновой reconciliation.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
)

// validTransitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — набор допустимых целевых статусов.
var validTransitions = map[model.Status]map[model.Status]bool{
	model.StatusScheduled:  {model.StatusInProgress: true, model.StatusCompleted: true},
	model.StatusInProgress: {model.StatusCompleted: true},
	model.StatusCompleted:  {}, // Терминальный статус — переходы запрещены
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to model.Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TransitionError — ошибка недопустимого перехода между статусами.
type TransitionError struct {
	From model.Status
	To   model.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("переход %s → %s недопустим", e.From, e.To)
}

// CheckTransition возвращает *TransitionError, если переход from → to
// недопустим, иначе nil.
func CheckTransition(from, to model.Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Derive вычисляет эффективный статус записи на момент now.
//
// Правило (применяется на КАЖДОМ пути чтения):
//   - completed остаётся completed независимо от планового времени;
//   - незавершённая запись с плановым временем в прошлом — overdue;
//   - иначе — хранимый статус без изменений.
func Derive(stored model.Status, scheduledAt, now time.Time) model.Status {
	if stored == model.StatusCompleted {
		return model.StatusCompleted
	}
	if now.After(scheduledAt) {
		return model.StatusOverdue
	}
	return stored
}

// DeriveRecord возвращает эффективный статус записи на момент now.
func DeriveRecord(rec *model.MaintenanceRecord, now time.Time) model.Status {
	return Derive(rec.Status, rec.ScheduledAt, now)
}

// NextOccurrence вычисляет плановое время следующего обслуживания
// для периодичности r, отсчитывая от ПЛАНОВОГО времени scheduledAt
// (не от фактического времени завершения — иначе накапливающиеся
// опоздания сдвигали бы график).
// Для once возвращает (zero, false).
func NextOccurrence(scheduledAt time.Time, r model.Recurrence) (time.Time, bool) {
	switch r {
	case model.RecurrenceMonthly:
		return scheduledAt.AddDate(0, 1, 0), true
	case model.RecurrenceQuarterly:
		return scheduledAt.AddDate(0, 3, 0), true
	case model.RecurrenceSemiannual:
		return scheduledAt.AddDate(0, 6, 0), true
	default:
		return time.Time{}, false
	}
}
