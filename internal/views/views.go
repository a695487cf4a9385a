// Пакет views — производные представления над зеркалом каталога.
// Все функции чистые: вход — снимки зеркал и критерии, выход — новые
// значения. Состояние зеркал не изменяется.
package views

import (
	"math"
	"sort"
	"strings"

	"github.com/thientangreen/mirror-module/internal/domain/model"
)

// DeadStatus — нормализованный статус погибшего дерева.
// Записи с этим статусом исключаются из годовых итогов.
const DeadStatus = "chết"

// UnknownFactoryName — подпись питомника, не найденного в зеркале.
const UnknownFactoryName = "Không xác định"

// UnknownLocationName — корзина питомников без распознанной локации.
const UnknownLocationName = "Địa điểm không xác định"

// DefaultStatus — нормализованный статус записей с пустым статусом.
const DefaultStatus = "khác"

// GroupName возвращает группу дерева: часть заголовка до первого
// дефиса, без краевых пробелов, в нижнем регистре.
// "Cây Dầu - A" → "cây dầu".
func GroupName(title string) string {
	head, _, _ := strings.Cut(title, "-")
	return strings.ToLower(strings.TrimSpace(head))
}

// NormalizeStatus приводит статус к каноническому виду:
// краевые пробелы убираются, регистр — нижний, пустой статус
// заменяется на DefaultStatus.
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" {
		return DefaultStatus
	}
	return s
}

// FilteredList возвращает деревья, удовлетворяющие всем заданным
// критериям одновременно. Незаданный критерий пропускает любую запись.
// Локация разрешается через зеркало питомников.
func FilteredList(products []model.Product, factories []model.Factory, c model.FilterCriteria) []model.Product {
	// Индекс питомников нужен только критерию локации
	var factoryLocation map[string]string
	if c.LocationID != "" {
		factoryLocation = make(map[string]string, len(factories))
		for _, f := range factories {
			factoryLocation[f.FactoryID] = f.LocationID
		}
	}

	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if matches(&p, c, factoryLocation) {
			out = append(out, p)
		}
	}
	return out
}

// matches проверяет одну запись на соответствие всем критериям.
func matches(p *model.Product, c model.FilterCriteria, factoryLocation map[string]string) bool {
	if c.Year != 0 && p.YearValue() != c.Year {
		return false
	}
	if c.Type != "" && GroupName(p.TitleValue()) != strings.ToLower(strings.TrimSpace(c.Type)) {
		return false
	}
	switch c.Media {
	case model.MediaImageOnly:
		if p.ImageValue() == "" {
			return false
		}
	case model.MediaVideoOnly:
		if p.VideoValue() == "" {
			return false
		}
	case model.MediaAll:
		// Явный критерий "все" требует хотя бы одного вида медиа.
		if p.ImageValue() == "" && p.VideoValue() == "" {
			return false
		}
	}
	if c.Status != "" && p.StatusValue() != c.Status {
		return false
	}
	if c.FactoryID != "" && p.FactoryID != c.FactoryID {
		return false
	}
	if c.LocationID != "" && factoryLocation[p.FactoryID] != c.LocationID {
		return false
	}
	return true
}

// Gallery возвращает пригодные для показа записи (непустые заголовок
// и статус), отсортированные по году посадки по убыванию.
// Сортировка стабильна: порядок каталога внутри года сохраняется.
func Gallery(products []model.Product) []model.Product {
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.Valid() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].YearValue() > out[j].YearValue()
	})
	return out
}

// StatusCount — счётчик одного нормализованного статуса.
type StatusCount struct {
	Status  string  `json:"status"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"` // доля от общего числа, один знак после запятой
}

// StatusBreakdown возвращает распределение записей по нормализованным
// статусам с процентами (один знак после запятой, сумма 100±0.1).
// Порядок — по убыванию количества, при равенстве по статусу.
func StatusBreakdown(products []model.Product) []StatusCount {
	counts := map[string]int{}
	for _, p := range products {
		counts[NormalizeStatus(p.StatusValue())]++
	}

	out := make([]StatusCount, 0, len(counts))
	total := len(products)
	for status, count := range counts {
		percent := 0.0
		if total > 0 {
			percent = math.Round(float64(count)/float64(total)*1000) / 10
		}
		out = append(out, StatusCount{Status: status, Count: count, Percent: percent})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// YearDetail — детализация года: количество деревьев с данным
// статусом и заголовком.
type YearDetail struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Count  int    `json:"count"`
}

// YearEntry — агрегат одного года посадки.
type YearEntry struct {
	Year int `json:"year"`
	// Total не включает погибшие деревья (статус "chết")
	Total   int          `json:"total"`
	Details []YearDetail `json:"details"`
}

// YearlyBreakdown возвращает агрегаты по годам посадки.
// Записи без даты исключаются; годы уникальны и строго убывают.
// Годовой итог не учитывает погибшие деревья, детализация — учитывает.
func YearlyBreakdown(products []model.Product) []YearEntry {
	type detailKey struct {
		status, title string
	}
	totals := map[int]int{}
	details := map[int]map[detailKey]int{}

	for _, p := range products {
		year := p.YearValue()
		if year == 0 {
			continue
		}
		status := NormalizeStatus(p.StatusValue())
		if status != DeadStatus {
			totals[year]++
		} else if _, ok := totals[year]; !ok {
			// Год с одними погибшими всё равно присутствует в разбивке
			totals[year] = 0
		}
		if details[year] == nil {
			details[year] = map[detailKey]int{}
		}
		details[year][detailKey{status, p.TitleValue()}]++
	}

	years := make([]int, 0, len(totals))
	for year := range totals {
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	out := make([]YearEntry, 0, len(years))
	for _, year := range years {
		entry := YearEntry{Year: year, Total: totals[year]}
		for key, count := range details[year] {
			entry.Details = append(entry.Details, YearDetail{
				Status: key.status,
				Title:  key.title,
				Count:  count,
			})
		}
		sort.Slice(entry.Details, func(i, j int) bool {
			if entry.Details[i].Status != entry.Details[j].Status {
				return entry.Details[i].Status < entry.Details[j].Status
			}
			return entry.Details[i].Title < entry.Details[j].Title
		})
		out = append(out, entry)
	}
	return out
}

// TitleCount — счётчик деревьев одного заголовка.
type TitleCount struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

// FactoryStat — агрегат одного питомника.
type FactoryStat struct {
	FactoryID string       `json:"factory_id"`
	Name      string       `json:"name"` // UnknownFactoryName, если питомник не найден
	Count     int          `json:"count"`
	Items     []TitleCount `json:"items"`
}

// FactoryStats возвращает распределение деревьев по питомникам
// с детализацией по заголовкам. Название разрешается через зеркало
// питомников, для неизвестного питомника — UnknownFactoryName.
// Порядок — по убыванию количества, при равенстве по названию.
func FactoryStats(products []model.Product, factories []model.Factory) []FactoryStat {
	names := make(map[string]string, len(factories))
	for _, f := range factories {
		names[f.FactoryID] = f.NameValue()
	}

	counts := map[string]int{}
	titles := map[string]map[string]int{}
	for _, p := range products {
		counts[p.FactoryID]++
		if titles[p.FactoryID] == nil {
			titles[p.FactoryID] = map[string]int{}
		}
		titles[p.FactoryID][p.TitleValue()]++
	}

	out := make([]FactoryStat, 0, len(counts))
	for factoryID, count := range counts {
		name := names[factoryID]
		if name == "" {
			name = UnknownFactoryName
		}
		stat := FactoryStat{FactoryID: factoryID, Name: name, Count: count}
		for title, n := range titles[factoryID] {
			stat.Items = append(stat.Items, TitleCount{Title: title, Count: n})
		}
		sort.Slice(stat.Items, func(i, j int) bool {
			if stat.Items[i].Count != stat.Items[j].Count {
				return stat.Items[i].Count > stat.Items[j].Count
			}
			return stat.Items[i].Title < stat.Items[j].Title
		})
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FilterOptions — доступные значения фильтров галереи.
type FilterOptions struct {
	Types    []string `json:"types"`
	Years    []int    `json:"years"`
	Statuses []string `json:"statuses"`
}

// Options возвращает уникальные значения фильтров по снимку зеркала:
// группы деревьев (по алфавиту), годы (по убыванию), статусы (по алфавиту).
func Options(products []model.Product) FilterOptions {
	typeSet := map[string]struct{}{}
	yearSet := map[int]struct{}{}
	statusSet := map[string]struct{}{}

	for _, p := range products {
		if g := GroupName(p.TitleValue()); g != "" {
			typeSet[g] = struct{}{}
		}
		if y := p.YearValue(); y != 0 {
			yearSet[y] = struct{}{}
		}
		if s := strings.TrimSpace(p.StatusValue()); s != "" {
			statusSet[s] = struct{}{}
		}
	}

	opts := FilterOptions{
		Types:    make([]string, 0, len(typeSet)),
		Years:    make([]int, 0, len(yearSet)),
		Statuses: make([]string, 0, len(statusSet)),
	}
	for t := range typeSet {
		opts.Types = append(opts.Types, t)
	}
	for y := range yearSet {
		opts.Years = append(opts.Years, y)
	}
	for s := range statusSet {
		opts.Statuses = append(opts.Statuses, s)
	}
	sort.Strings(opts.Types)
	sort.Sort(sort.Reverse(sort.IntSlice(opts.Years)))
	sort.Strings(opts.Statuses)
	return opts
}

// LocationFactories — питомники одной локации (для сводки локаций).
type LocationFactories struct {
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
	// Названия питомников через запятую, в порядке зеркала
	Factories string `json:"factories"`
}

// FactoriesByLocation группирует питомники по локациям.
// Питомники без распознанной локации попадают в корзину
// UnknownLocationName (последней).
func FactoriesByLocation(factories []model.Factory, locations []model.Location) []LocationFactories {
	grouped := map[string][]string{}
	for _, f := range factories {
		grouped[f.LocationID] = append(grouped[f.LocationID], f.NameValue())
	}

	out := make([]LocationFactories, 0, len(locations)+1)
	for _, loc := range locations {
		names := grouped[loc.LocationID]
		delete(grouped, loc.LocationID)
		out = append(out, LocationFactories{
			LocationID: loc.LocationID,
			Name:       loc.NameValue(),
			Factories:  strings.Join(names, ", "),
		})
	}

	// Остаток — питомники с неизвестной локацией
	var orphans []string
	orphanKeys := make([]string, 0, len(grouped))
	for key := range grouped {
		orphanKeys = append(orphanKeys, key)
	}
	sort.Strings(orphanKeys)
	for _, key := range orphanKeys {
		orphans = append(orphans, grouped[key]...)
	}
	if len(orphans) > 0 {
		out = append(out, LocationFactories{
			Name:      UnknownLocationName,
			Factories: strings.Join(orphans, ", "),
		})
	}
	return out
}
