// dispatcher.go — маршрутизация событий каталога в локальные зеркала.
//
// Для каждой коллекции настроена стратегия согласования:
//   - patch   — точечное изменение зеркала телом события
//   - refetch — полная перезагрузка коллекции из каталога
//
// Битые payload'ы логируются на уровне debug и отбрасываются,
// ни одно событие не приводит к остановке потока.
package stream

import (
	"encoding/json"
	"log/slog"

	"github.com/thientangreen/mirror-module/internal/domain/model"
	"github.com/thientangreen/mirror-module/internal/mirror"
)

// Refetcher запрашивает полную перезагрузку коллекции.
// Вызов не блокирует диспетчер: перезагрузка выполняется асинхронно.
type Refetcher func(entity string)

// Dispatcher применяет события каталога к зеркалам.
type Dispatcher struct {
	products  *mirror.Store[model.Product]
	factories *mirror.Store[model.Factory]
	locations *mirror.Store[model.Location]
	users     *mirror.Store[model.User]

	// Стратегия по коллекции: patch или refetch
	strategies map[string]string
	refetch    Refetcher
	logger     *slog.Logger
}

// NewDispatcher создаёт диспетчер событий.
// strategies — отображение коллекция → стратегия (patch, refetch).
func NewDispatcher(
	products *mirror.Store[model.Product],
	factories *mirror.Store[model.Factory],
	locations *mirror.Store[model.Location],
	users *mirror.Store[model.User],
	strategies map[string]string,
	refetch Refetcher,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		products:   products,
		factories:  factories,
		locations:  locations,
		users:      users,
		strategies: strategies,
		refetch:    refetch,
		logger:     logger.With(slog.String("component", "dispatcher")),
	}
}

// HandleEvent применяет одно событие. Реализует stream.EventFunc.
func (d *Dispatcher) HandleEvent(entity, action string, data json.RawMessage) {
	if d.strategies[entity] == "refetch" {
		d.refetch(entity)
		return
	}

	switch entity {
	case model.EntityProduct:
		applyPatch(d, d.products, "product_id", action, data)
	case model.EntityFactory:
		applyPatch(d, d.factories, "factory_id", action, data)
	case model.EntityLocation:
		applyPatch(d, d.locations, "location_id", action, data)
	case model.EntityUsers:
		applyPatch(d, d.users, "user_id", action, data)
	}
}

// applyPatch применяет patch-событие к зеркалу коллекции.
func applyPatch[T any](d *Dispatcher, store *mirror.Store[T], idField, action string, data json.RawMessage) {
	switch action {
	case "created", "updated":
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			d.logger.Debug("Битый payload события, событие отброшено",
				slog.String("action", action),
				slog.String("error", err.Error()),
			)
			return
		}
		if action == "created" {
			store.ApplyCreated(item)
		} else {
			store.ApplyUpdated(item)
		}
	case "deleted":
		key, ok := deletedKey(data, idField)
		if !ok {
			d.logger.Debug("Событие deleted без идентификатора, отброшено",
				slog.String("id_field", idField),
			)
			return
		}
		store.ApplyDeleted(key)
	}
}

// deletedKey извлекает ключ удалённой записи. Каталог может прислать
// как объект записи, так и голый идентификатор строкой.
func deletedKey(data json.RawMessage, idField string) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		var id string
		if raw, ok := obj[idField]; ok && json.Unmarshal(raw, &id) == nil && id != "" {
			return id, true
		}
		return "", false
	}

	var id string
	if err := json.Unmarshal(data, &id); err == nil && id != "" {
		return id, true
	}
	return "", false
}
