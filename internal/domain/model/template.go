// template.go — шаблоны чек-листов и определения пунктов.
// Хранятся в таблице checklist_templates (пункты — JSONB).
package model

import (
	"fmt"
	"time"
)

// ItemKind — тип пункта чек-листа.
type ItemKind string

const (
	// ItemKindTask — простая задача (только отметка выполнения)
	ItemKindTask ItemKind = "task"
	// ItemKindText — свободный текст
	ItemKindText ItemKind = "text"
	// ItemKindNumber — числовое значение (показание прибора)
	ItemKindNumber ItemKind = "number"
	// ItemKindChoice — выбор одного варианта из списка
	ItemKindChoice ItemKind = "choice"
	// ItemKindYesNo — да/нет
	ItemKindYesNo ItemKind = "yesno"
	// ItemKindPhoto — загрузка фотографий
	ItemKindPhoto ItemKind = "photo"
)

// ChecklistItem — определение одного пункта шаблона.
type ChecklistItem struct {
	// ID — идентификатор пункта, уникален в пределах шаблона
	ID string `json:"id"`
	// Title — название пункта
	Title string `json:"title"`
	// Description — необязательное описание
	Description string `json:"description,omitempty"`
	// Kind — тип пункта
	Kind ItemKind `json:"kind"`
	// Required — обязателен ли пункт для завершения чек-листа
	Required bool `json:"required"`
	// Position — порядковый номер пункта
	Position int `json:"position"`
	// Options — варианты выбора (только для kind = choice, минимум один)
	Options []string `json:"options,omitempty"`
}

// Template — шаблон чек-листа обслуживания.
type Template struct {
	// ID — UUID шаблона
	ID string
	// Name — название шаблона
	Name string
	// Description — необязательное описание
	Description string
	// IsActive — false для выведенных из оборота шаблонов
	IsActive bool
	// Items — упорядоченный список пунктов
	Items []ChecklistItem
	// CreatedAt — время создания
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// isValidItemKind проверяет, является ли строка допустимым типом пункта.
func isValidItemKind(k ItemKind) bool {
	switch k {
	case ItemKindTask, ItemKindText, ItemKindNumber, ItemKindChoice, ItemKindYesNo, ItemKindPhoto:
		return true
	default:
		return false
	}
}

// ValidateItems проверяет список пунктов шаблона:
// список непуст, идентификаторы уникальны, названия непусты,
// типы допустимы, choice-пункты имеют хотя бы один вариант.
func ValidateItems(items []ChecklistItem) error {
	if len(items) == 0 {
		return fmt.Errorf("список пунктов пуст")
	}

	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("пункт %d: пустой идентификатор", i)
		}
		if seen[item.ID] {
			return fmt.Errorf("пункт %q: дублирующийся идентификатор", item.ID)
		}
		seen[item.ID] = true

		if item.Title == "" {
			return fmt.Errorf("пункт %q: пустое название", item.ID)
		}
		if !isValidItemKind(item.Kind) {
			return fmt.Errorf("пункт %q: недопустимый тип %q", item.ID, item.Kind)
		}
		if item.Kind == ItemKindChoice && len(item.Options) == 0 {
			return fmt.Errorf("пункт %q: choice-пункт без вариантов выбора", item.ID)
		}
		if item.Kind != ItemKindChoice && len(item.Options) > 0 {
			return fmt.Errorf("пункт %q: варианты выбора допустимы только для kind = choice", item.ID)
		}
	}

	return nil
}

// Validate проверяет шаблон целиком: непустое имя и корректный список пунктов.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("пустое название шаблона")
	}
	return ValidateItems(t.Items)
}

// CloneItems возвращает глубокую копию списка пунктов.
// Используется при инстанцировании чек-листа и дублировании шаблона,
// чтобы исключить алиасинг срезов Options.
func CloneItems(items []ChecklistItem) []ChecklistItem {
	result := make([]ChecklistItem, len(items))
	copy(result, items)
	for i := range result {
		if len(result[i].Options) > 0 {
			opts := make([]string, len(result[i].Options))
			copy(opts, result[i].Options)
			result[i].Options = opts
		}
	}
	return result
}
