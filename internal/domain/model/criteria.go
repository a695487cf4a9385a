// criteria.go — критерии фильтрации деревьев для производных представлений.
package model

// Режимы фильтра по медиа.
const (
	MediaAll       = "all"
	MediaImageOnly = "image"
	MediaVideoOnly = "video"
)

// Имена коллекций каталога. Используются в маршрутах WebSocket,
// именах событий и конфигурации стратегий согласования.
const (
	EntityProduct  = "product"
	EntityFactory  = "factory"
	EntityLocation = "location"
	EntityUsers    = "users"
)

// FilterCriteria — набор независимых критериев фильтрации.
// Нулевое значение поля означает "критерий не задан".
type FilterCriteria struct {
	// Календарный год посадки (0 — не задан)
	Year int
	// Группа дерева (часть заголовка до первого дефиса)
	Type string
	// Режим медиа: all, image, video ("" эквивалентно all)
	Media string
	// Точное значение статуса
	Status string
	// Идентификатор питомника
	FactoryID string
	// Идентификатор локации (разрешается через питомник)
	LocationID string
}

// Zero сообщает, задан ли хотя бы один критерий.
func (c FilterCriteria) Zero() bool {
	return c == FilterCriteria{}
}
