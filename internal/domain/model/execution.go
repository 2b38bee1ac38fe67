// execution.go — выполнение чек-листа в рамках записи обслуживания.
// Хранится как JSONB-колонка maintenance_records.checklist.
package model

import "fmt"

// ChecklistExecution — инстанцированный чек-лист записи обслуживания.
// Items — снимок определений пунктов на момент инстанцирования:
// последующие правки шаблона не затрагивают уже созданные выполнения.
// TemplateID — невладеющая ссылка на исходный шаблон (nil для ad hoc).
type ChecklistExecution struct {
	// TemplateID — UUID исходного шаблона (nil, если чек-лист собран ad hoc)
	TemplateID *string `json:"template_id,omitempty"`
	// Items — снимок определений пунктов в порядке шаблона
	Items []ChecklistItem `json:"items"`
	// Responses — ответы, зеркалят Items по порядку и идентификаторам
	Responses []ItemResponse `json:"responses"`
	// Progress — процент выполнения 0-100 (считаются все пункты)
	Progress int `json:"progress"`
}

// ItemResponse — ответ на один пункт чек-листа.
type ItemResponse struct {
	// ItemID — идентификатор пункта из снимка Items
	ItemID string `json:"item_id"`
	// Completed — отмечен ли пункт выполненным
	Completed bool `json:"completed"`
	// Value — типизированное значение ответа (nil, если не задано)
	Value *ItemValue `json:"value,omitempty"`
	// Notes — заметки к пункту
	Notes string `json:"notes,omitempty"`
	// Photos — фотографии, приложенные к пункту (URL)
	Photos []string `json:"photos,omitempty"`
}

// ItemValue — типизированное значение ответа.
// Tagged union: заполнено ровно одно поле, соответствующее Kind пункта.
type ItemValue struct {
	// Bool — для kind = yesno
	Bool *bool `json:"bool,omitempty"`
	// Number — для kind = number
	Number *float64 `json:"number,omitempty"`
	// Text — для kind = text
	Text *string `json:"text,omitempty"`
	// Choice — выбранный вариант для kind = choice
	Choice *string `json:"choice,omitempty"`
	// Photos — ссылки на фотографии для kind = photo
	Photos []string `json:"photos,omitempty"`
}

// fieldCount возвращает количество заполненных полей union.
func (v *ItemValue) fieldCount() int {
	n := 0
	if v.Bool != nil {
		n++
	}
	if v.Number != nil {
		n++
	}
	if v.Text != nil {
		n++
	}
	if v.Choice != nil {
		n++
	}
	if len(v.Photos) > 0 {
		n++
	}
	return n
}

// ValidateForKind проверяет, что значение соответствует типу пункта.
// kind = task значения не принимает вовсе.
func (v *ItemValue) ValidateForKind(item ChecklistItem) error {
	if v.fieldCount() > 1 {
		return fmt.Errorf("пункт %q: значение содержит более одного поля", item.ID)
	}

	switch item.Kind {
	case ItemKindTask:
		if v.fieldCount() != 0 {
			return fmt.Errorf("пункт %q: task-пункт не принимает значения", item.ID)
		}
	case ItemKindYesNo:
		if v.Bool == nil {
			return fmt.Errorf("пункт %q: ожидается булево значение", item.ID)
		}
	case ItemKindNumber:
		if v.Number == nil {
			return fmt.Errorf("пункт %q: ожидается числовое значение", item.ID)
		}
	case ItemKindText:
		if v.Text == nil {
			return fmt.Errorf("пункт %q: ожидается текстовое значение", item.ID)
		}
	case ItemKindChoice:
		if v.Choice == nil {
			return fmt.Errorf("пункт %q: ожидается выбранный вариант", item.ID)
		}
		for _, opt := range item.Options {
			if opt == *v.Choice {
				return nil
			}
		}
		return fmt.Errorf("пункт %q: вариант %q отсутствует в списке", item.ID, *v.Choice)
	case ItemKindPhoto:
		if len(v.Photos) == 0 {
			return fmt.Errorf("пункт %q: ожидается список фотографий", item.ID)
		}
	}

	return nil
}
