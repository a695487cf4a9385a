// views.go — производные представления зеркала с LRU-кэшем.
//
// Представления пересчитываются лениво и кэшируются до смены снимка
// зеркала: поколение зеркала входит в ключ кэша, поэтому после любого
// изменения коллекции закэшированный результат перестаёт находиться.
package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/thientangreen/mirror-module/internal/domain/model"
	"github.com/thientangreen/mirror-module/internal/report"
	"github.com/thientangreen/mirror-module/internal/views"
)

// GalleryPageSize — число деревьев на странице галереи.
const GalleryPageSize = 12

// ViewService — доступ к производным представлениям зеркала.
type ViewService struct {
	catalog *CatalogService
	cache   *views.Cache
}

// NewViewService создаёт сервис представлений с кэшем размером maxSize
// и временем жизни записей ttl.
func NewViewService(catalog *CatalogService, maxSize int, ttl time.Duration) *ViewService {
	return &ViewService{
		catalog: catalog,
		cache:   views.NewCache(maxSize, ttl),
	}
}

// cached возвращает закэшированное представление или вычисляет его.
func cached[T any](s *ViewService, view string, c model.FilterCriteria, compute func() T) T {
	key := views.Key(view, s.catalog.products.Generation(), s.catalog.factories.Generation(), c)
	if val, ok := s.cache.Get(key); ok {
		if typed, ok := val.(T); ok {
			return typed
		}
	}
	result := compute()
	s.cache.Set(key, result)
	return result
}

// Filtered возвращает деревья, удовлетворяющие критериям.
func (s *ViewService) Filtered(c model.FilterCriteria) []model.Product {
	return cached(s, "filtered", c, func() []model.Product {
		return views.FilteredList(s.catalog.products.List(), s.catalog.factories.List(), c)
	})
}

// GalleryPage — страница публичной галереи.
type GalleryPage struct {
	Items []model.Product `json:"items"`
	Page  int             `json:"page"`
	Pages int             `json:"pages"`
	Total int             `json:"total"`
}

// Gallery возвращает страницу галереи по критериям.
// Невалидные записи скрыты, сортировка — по году посадки по убыванию,
// номер страницы за пределами диапазона даёт пустую страницу.
func (s *ViewService) Gallery(c model.FilterCriteria, page int) GalleryPage {
	items := cached(s, "gallery", c, func() []model.Product {
		filtered := views.FilteredList(s.catalog.products.List(), s.catalog.factories.List(), c)
		return views.Gallery(filtered)
	})

	total := len(items)
	pages := (total + GalleryPageSize - 1) / GalleryPageSize
	if page < 1 {
		page = 1
	}

	start := (page - 1) * GalleryPageSize
	if start >= total {
		return GalleryPage{Items: []model.Product{}, Page: page, Pages: pages, Total: total}
	}
	end := start + GalleryPageSize
	if end > total {
		end = total
	}
	return GalleryPage{Items: items[start:end], Page: page, Pages: pages, Total: total}
}

// Options возвращает доступные значения фильтров галереи.
func (s *ViewService) Options() views.FilterOptions {
	return cached(s, "options", model.FilterCriteria{}, func() views.FilterOptions {
		return views.Options(s.catalog.products.List())
	})
}

// StatusStats возвращает распределение деревьев по статусам
// для отфильтрованного набора.
func (s *ViewService) StatusStats(c model.FilterCriteria) []views.StatusCount {
	return cached(s, "status", c, func() []views.StatusCount {
		return views.StatusBreakdown(s.Filtered(c))
	})
}

// YearlyStats возвращает агрегаты по годам посадки.
func (s *ViewService) YearlyStats(c model.FilterCriteria) []views.YearEntry {
	return cached(s, "yearly", c, func() []views.YearEntry {
		return views.YearlyBreakdown(s.Filtered(c))
	})
}

// FactoryStats возвращает статистику по питомникам.
func (s *ViewService) FactoryStats(c model.FilterCriteria) []views.FactoryStat {
	return cached(s, "factories", c, func() []views.FactoryStat {
		return views.FactoryStats(s.Filtered(c), s.catalog.factories.List())
	})
}

// LocationSummary возвращает питомники, сгруппированные по локациям.
func (s *ViewService) LocationSummary() []views.LocationFactories {
	return cached(s, "locations", model.FilterCriteria{}, func() []views.LocationFactories {
		return views.FactoriesByLocation(s.catalog.factories.List(), s.catalog.locations.List())
	})
}

// Report формирует xlsx-отчёт по отфильтрованному набору деревьев
// и возвращает содержимое книги с именем файла.
func (s *ViewService) Report(c model.FilterCriteria, now time.Time) (*bytes.Buffer, string, error) {
	buf, err := report.Build(s.Filtered(c), s.catalog.factories.List(), s.catalog.locations.List())
	if err != nil {
		return nil, "", fmt.Errorf("формирование отчёта: %w", err)
	}
	return buf, report.Filename(now), nil
}
