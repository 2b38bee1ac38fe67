// record.go — запись о техническом обслуживании.
// Хранится в таблице maintenance_records.
package model

import (
	"fmt"
	"time"
)

// Status — статус записи обслуживания.
// В БД хранятся только scheduled, in_progress и completed.
// StatusOverdue — производное представление, вычисляется при чтении
// и никогда не записывается в хранилище.
type Status string

const (
	// StatusScheduled — запланировано (начальный статус)
	StatusScheduled Status = "scheduled"
	// StatusInProgress — выполняется
	StatusInProgress Status = "in_progress"
	// StatusCompleted — завершено (терминальный статус)
	StatusCompleted Status = "completed"
	// StatusOverdue — просрочено (только представление, не хранится)
	StatusOverdue Status = "overdue"
)

// Recurrence — периодичность обслуживания.
type Recurrence string

const (
	// RecurrenceOnce — разовое обслуживание
	RecurrenceOnce Recurrence = "once"
	// RecurrenceMonthly — ежемесячно
	RecurrenceMonthly Recurrence = "monthly"
	// RecurrenceQuarterly — ежеквартально
	RecurrenceQuarterly Recurrence = "quarterly"
	// RecurrenceSemiannual — раз в полгода
	RecurrenceSemiannual Recurrence = "semiannual"
)

// AssetType — тип обслуживаемого объекта.
type AssetType string

const (
	// AssetTypeSite — площадка
	AssetTypeSite AssetType = "site"
	// AssetTypeGenerator — резервный генератор
	AssetTypeGenerator AssetType = "generator"
)

// AssetReference — ссылка на обслуживаемый объект.
// Name — снимок отображаемого имени на момент создания записи;
// переименование объекта не переписывает историю задним числом.
type AssetReference struct {
	Type AssetType
	ID   string
	Name string
}

// MaintenanceRecord — одна запись о запланированном/выполненном обслуживании.
// Запись монопольно владеет встроенным ChecklistExecution.
type MaintenanceRecord struct {
	// ID — UUID записи
	ID string
	// Title — название работы
	Title string
	// Asset — обслуживаемый объект
	Asset AssetReference
	// Status — хранимый статус (scheduled, in_progress, completed)
	Status Status
	// ScheduledAt — запланированное время обслуживания
	ScheduledAt time.Time
	// CompletedAt — время завершения; задан тогда и только тогда,
	// когда Status = completed
	CompletedAt *time.Time
	// Recurrence — периодичность
	Recurrence Recurrence
	// Checklist — встроенный чек-лист (nil, если без чек-листа)
	Checklist *ChecklistExecution
	// Notes — произвольные заметки
	Notes string
	// TechnicianID — ответственный техник (опционально)
	TechnicianID *string
	// Photos — общие фотографии (URL)
	Photos []string
	// OriginActivityID — ссылка на породившую активность (опционально)
	OriginActivityID *string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// ParseAssetType преобразует строку в AssetType.
func ParseAssetType(s string) (AssetType, error) {
	t := AssetType(s)
	switch t {
	case AssetTypeSite, AssetTypeGenerator:
		return t, nil
	default:
		return "", fmt.Errorf("недопустимый тип объекта: %q, допустимые: site, generator", s)
	}
}

// ParseRecurrence преобразует строку в Recurrence.
// Пустая строка трактуется как once.
func ParseRecurrence(s string) (Recurrence, error) {
	if s == "" {
		return RecurrenceOnce, nil
	}
	r := Recurrence(s)
	switch r {
	case RecurrenceOnce, RecurrenceMonthly, RecurrenceQuarterly, RecurrenceSemiannual:
		return r, nil
	default:
		return "", fmt.Errorf("недопустимая периодичность: %q, допустимые: once, monthly, quarterly, semiannual", s)
	}
}

// IsStoredStatus проверяет, является ли статус хранимым
// (overdue — производное представление, в БД не попадает).
func IsStoredStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}
