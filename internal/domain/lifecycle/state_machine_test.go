package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
)

// TestCanTransition проверяет матрицу допустимых переходов.
func TestCanTransition(t *testing.T) {
	tests := []struct {
		from model.Status
		to   model.Status
		want bool
	}{
		{model.StatusScheduled, model.StatusInProgress, true},
		{model.StatusScheduled, model.StatusCompleted, true},
		{model.StatusInProgress, model.StatusCompleted, true},
		{model.StatusInProgress, model.StatusScheduled, false},
		{model.StatusCompleted, model.StatusScheduled, false},
		{model.StatusCompleted, model.StatusInProgress, false},
		{model.StatusCompleted, model.StatusCompleted, false},
		{model.StatusScheduled, model.StatusScheduled, false},
		// overdue — не хранимый статус, переходы через него запрещены
		{model.StatusOverdue, model.StatusCompleted, false},
		{model.StatusScheduled, model.StatusOverdue, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, хотели %v", tt.from, tt.to, got, tt.want)
		}
	}
}

// TestCheckTransition проверяет формирование TransitionError.
func TestCheckTransition(t *testing.T) {
	if err := CheckTransition(model.StatusScheduled, model.StatusInProgress); err != nil {
		t.Errorf("scheduled → in_progress: неожиданная ошибка: %v", err)
	}

	err := CheckTransition(model.StatusCompleted, model.StatusInProgress)
	if err == nil {
		t.Fatal("completed → in_progress: ожидалась ошибка")
	}
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("ожидался *TransitionError, получен %T", err)
	}
	if te.From != model.StatusCompleted || te.To != model.StatusInProgress {
		t.Errorf("TransitionError{%s, %s}, хотели {completed, in_progress}", te.From, te.To)
	}
}

// TestDerive проверяет вычисление производного статуса.
func TestDerive(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name        string
		stored      model.Status
		scheduledAt time.Time
		want        model.Status
	}{
		{"scheduled в будущем остаётся scheduled", model.StatusScheduled, future, model.StatusScheduled},
		{"scheduled в прошлом — overdue", model.StatusScheduled, past, model.StatusOverdue},
		{"in_progress в будущем остаётся in_progress", model.StatusInProgress, future, model.StatusInProgress},
		{"in_progress в прошлом — overdue", model.StatusInProgress, past, model.StatusOverdue},
		{"completed не бывает overdue", model.StatusCompleted, past, model.StatusCompleted},
		{"completed в будущем остаётся completed", model.StatusCompleted, future, model.StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.stored, tt.scheduledAt, now); got != tt.want {
				t.Errorf("Derive(%s, %v) = %s, хотели %s", tt.stored, tt.scheduledAt, got, tt.want)
			}
		})
	}
}

// TestDerive_ExactBoundary проверяет границу: now == scheduledAt — ещё не просрочено.
func TestDerive_ExactBoundary(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	if got := Derive(model.StatusScheduled, now, now); got != model.StatusScheduled {
		t.Errorf("Derive на границе = %s, хотели scheduled", got)
	}
}

// TestNextOccurrence проверяет расчёт даты следующего обслуживания.
func TestNextOccurrence(t *testing.T) {
	base := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		recurrence model.Recurrence
		want       time.Time
		wantOK     bool
	}{
		{"once — следующего нет", model.RecurrenceOnce, time.Time{}, false},
		{"monthly — плюс месяц", model.RecurrenceMonthly, base.AddDate(0, 1, 0), true},
		{"quarterly — плюс квартал", model.RecurrenceQuarterly, base.AddDate(0, 3, 0), true},
		{"semiannual — плюс полгода", model.RecurrenceSemiannual, base.AddDate(0, 6, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextOccurrence(base, tt.recurrence)
			if ok != tt.wantOK {
				t.Fatalf("NextOccurrence ok = %v, хотели %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("NextOccurrence = %v, хотели %v", got, tt.want)
			}
		})
	}
}

// TestNextOccurrence_FromScheduled проверяет, что отсчёт идёт от планового
// времени: позднее завершение не сдвигает график.
func TestNextOccurrence_FromScheduled(t *testing.T) {
	scheduled := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	next, ok := NextOccurrence(scheduled, model.RecurrenceMonthly)
	if !ok {
		t.Fatal("monthly: ожидалась следующая дата")
	}
	want := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("следующая дата %v, хотели %v", next, want)
	}
}
