// cache.go — LRU-кэш шаблонов чек-листов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	templateCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_template_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш шаблонов.",
	})
	templateCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_template_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша шаблонов.",
	})
)

// TemplateCache — in-memory LRU-кэш шаблонов с автоматическим TTL.
// Каждый экземпляр модуля держит собственный кэш; инвалидация при
// replace/archive/delete выполняется сервисом шаблонов.
type TemplateCache struct {
	cache *expirable.LRU[string, *model.Template]
}

// NewTemplateCache создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewTemplateCache(maxSize int, ttl time.Duration) *TemplateCache {
	cache := expirable.NewLRU[string, *model.Template](maxSize, nil, ttl)
	return &TemplateCache{cache: cache}
}

// Get возвращает шаблон из кэша по id.
// Возвращает (шаблон, true) при hit или (nil, false) при miss.
func (c *TemplateCache) Get(id string) (*model.Template, bool) {
	val, ok := c.cache.Get(id)
	if ok {
		templateCacheHitsTotal.Inc()
		return val, true
	}
	templateCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет шаблон в кэше.
func (c *TemplateCache) Set(id string, tpl *model.Template) {
	c.cache.Add(id, tpl)
}

// Delete удаляет шаблон из кэша (инвалидация при изменении или удалении).
func (c *TemplateCache) Delete(id string) {
	c.cache.Remove(id)
}
