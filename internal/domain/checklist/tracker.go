// Пакет checklist — выполнение чек-листов: инстанцирование шаблона,
// применение ответов, расчёт прогресса и проверка завершённости.
//
// Выполнение несёт собственный снимок определений пунктов, поэтому
// правки шаблона после инстанцирования на него не влияют.
// Apply возвращает новое значение выполнения (replace-on-write),
// исходное не мутируется.
package checklist

import (
	"fmt"
	"math"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
)

// Instantiate создаёт выполнение чек-листа из шаблона.
// Ответы зеркалят пункты шаблона в их порядке: completed = false,
// без значения, без заметок, прогресс 0.
func Instantiate(tpl *model.Template) *model.ChecklistExecution {
	exec := instantiateItems(model.CloneItems(tpl.Items))
	id := tpl.ID
	exec.TemplateID = &id
	return exec
}

// InstantiateAdHoc создаёт выполнение для чек-листа, не привязанного
// к сохранённому шаблону (TemplateID = nil).
// Список пунктов валидируется по тем же правилам, что и в шаблоне.
func InstantiateAdHoc(items []model.ChecklistItem) (*model.ChecklistExecution, error) {
	if err := model.ValidateItems(items); err != nil {
		return nil, err
	}
	return instantiateItems(model.CloneItems(items)), nil
}

func instantiateItems(items []model.ChecklistItem) *model.ChecklistExecution {
	responses := make([]model.ItemResponse, len(items))
	for i, item := range items {
		responses[i] = model.ItemResponse{ItemID: item.ID}
	}
	return &model.ChecklistExecution{
		Items:     items,
		Responses: responses,
		Progress:  0,
	}
}

// Apply сливает входящие ответы в выполнение по идентификатору пункта
// и пересчитывает прогресс. Возвращает НОВОЕ выполнение, exec не мутируется.
//
// Ответ с неизвестным идентификатором отклоняется — это защита от
// инъекции ответов на несуществующие пункты. Значение ответа
// валидируется против типа пункта из снимка.
// Операция идемпотентна: повторное применение того же набора ответов
// даёт идентичное состояние.
func Apply(exec *model.ChecklistExecution, incoming []model.ItemResponse) (*model.ChecklistExecution, error) {
	// Индекс определений пунктов из снимка
	defs := make(map[string]model.ChecklistItem, len(exec.Items))
	for _, item := range exec.Items {
		defs[item.ID] = item
	}

	// Валидация входящих ответов до каких-либо изменений
	for _, resp := range incoming {
		item, ok := defs[resp.ItemID]
		if !ok {
			return nil, fmt.Errorf("ответ на неизвестный пункт %q", resp.ItemID)
		}
		if resp.Value != nil {
			if err := resp.Value.ValidateForKind(item); err != nil {
				return nil, err
			}
		}
	}

	// Копия выполнения со слитыми ответами
	result := &model.ChecklistExecution{
		TemplateID: exec.TemplateID,
		Items:      model.CloneItems(exec.Items),
		Responses:  make([]model.ItemResponse, len(exec.Responses)),
	}
	copy(result.Responses, exec.Responses)

	byID := make(map[string]int, len(result.Responses))
	for i, resp := range result.Responses {
		byID[resp.ItemID] = i
	}
	for _, resp := range incoming {
		result.Responses[byID[resp.ItemID]] = resp
	}

	result.Progress = progress(result.Responses)
	return result, nil
}

// IsComplete возвращает true, если каждый ОБЯЗАТЕЛЬНЫЙ пункт отмечен
// выполненным. Необязательные пункты завершение не блокируют,
// хотя и учитываются в прогрессе — это намеренно разные предикаты.
func IsComplete(exec *model.ChecklistExecution) bool {
	completed := make(map[string]bool, len(exec.Responses))
	for _, resp := range exec.Responses {
		completed[resp.ItemID] = resp.Completed
	}
	for _, item := range exec.Items {
		if item.Required && !completed[item.ID] {
			return false
		}
	}
	return true
}

// progress считает процент выполнения: round(100·completed/total).
// Пустой список пунктов даёт 0, а не деление на ноль.
func progress(responses []model.ItemResponse) int {
	total := len(responses)
	if total == 0 {
		return 0
	}
	completed := 0
	for _, resp := range responses {
		if resp.Completed {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
