// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт: ресурс уже существует или на него ссылаются.
	ErrConflict = errors.New("конфликт ресурса")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidTransition — недопустимый переход статуса записи.
	ErrInvalidTransition = errors.New("недопустимый переход статуса")
	// ErrAlreadyCompleted — попытка завершить уже завершённую запись.
	// Специализация ErrInvalidTransition: errors.Is распознаёт оба сентинела.
	ErrAlreadyCompleted = fmt.Errorf("%w: запись уже завершена", ErrInvalidTransition)
)
