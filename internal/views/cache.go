// cache.go — LRU-кэш вычисленных представлений с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable. Ключ включает
// поколение зеркала, поэтому устаревшие записи не переживают
// изменение снимка; TTL страхует от утечки ключей старых поколений.
package views

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/thientangreen/mirror-module/internal/domain/model"
)

// Prometheus-метрики кэша представлений.
var (
	viewCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_view_cache_hits_total",
		Help: "Общее количество попаданий в кэш производных представлений.",
	})
	viewCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_view_cache_misses_total",
		Help: "Общее количество промахов кэша производных представлений.",
	})
)

// Cache — LRU-кэш производных представлений.
type Cache struct {
	cache *expirable.LRU[string, any]
}

// NewCache создаёт кэш с указанным максимальным размером и TTL.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		cache: expirable.NewLRU[string, any](maxSize, nil, ttl),
	}
}

// Get возвращает представление из кэша. Обновляет метрики hit/miss.
func (c *Cache) Get(key string) (any, bool) {
	val, ok := c.cache.Get(key)
	if ok {
		viewCacheHitsTotal.Inc()
		return val, true
	}
	viewCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет представление в кэш.
func (c *Cache) Set(key string, val any) {
	c.cache.Add(key, val)
}

// Key собирает ключ кэша из имени представления, поколений зеркал
// и критериев фильтрации.
func Key(view string, productsGen, factoriesGen uint64, c model.FilterCriteria) string {
	return fmt.Sprintf("%s|%d|%d|%d|%s|%s|%s|%s|%s",
		view, productsGen, factoriesGen,
		c.Year, c.Type, c.Media, c.Status, c.FactoryID, c.LocationID,
	)
}
