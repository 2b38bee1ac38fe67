// clock.go — инжектируемый источник времени.
// Производный статус overdue и расчёт повторений зависят от текущего
// момента, поэтому часы передаются явно и подменяются в тестах.
package service

import "time"

// Clock — источник текущего времени.
type Clock interface {
	Now() time.Time
}

// SystemClock — системные часы. Время всегда в UTC.
type SystemClock struct{}

// Now возвращает текущее время в UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
