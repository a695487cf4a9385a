// Пакет mirror — локальные зеркала коллекций каталога.
// Store хранит упорядоченный снимок одной коллекции и применяет к нему
// полные замены (ответы list) и точечные патчи (события WebSocket).
// Номера выборок (sequence) отсекают устаревшие ответы, пришедшие
// после более свежих.
package mirror

import (
	"fmt"
	"sync"
	"time"
)

// Config — функции доступа к записям коллекции.
// Дженерик-хранилищу нужен ключ записи, установка ключа (для событий
// created без идентификатора) и слияние при обновлении.
type Config[T any] struct {
	// KeyOf возвращает первичный ключ записи
	KeyOf func(T) string
	// WithKey возвращает запись с установленным ключом
	WithKey func(T, string) T
	// Merge накладывает патч upd на существующую запись
	Merge func(old, upd T) T
}

// Store — потокобезопасное зеркало одной коллекции.
type Store[T any] struct {
	cfg Config[T]

	mu      sync.RWMutex
	items   []T
	index   map[string]int // ключ → позиция в items
	loading bool           // до первой успешной выборки
	lastErr error
	loaded  bool

	seq        uint64 // последний выданный номер выборки
	appliedSeq uint64 // номер последней применённой выборки
	generation uint64 // растёт при каждом изменении снимка
}

// New создаёт пустое зеркало. До первой успешной выборки Loading() == true.
func New[T any](cfg Config[T]) *Store[T] {
	return &Store[T]{
		cfg:     cfg,
		index:   make(map[string]int),
		loading: true,
	}
}

// BeginFetch выдаёт номер новой выборки. Ответ передаётся в Replace
// с этим номером; ответы с номерами меньше уже применённого отбрасываются.
func (s *Store[T]) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Replace заменяет снимок результатом выборки seq.
// Возвращает false, если выборка устарела и была отброшена.
func (s *Store[T]) Replace(seq uint64, items []T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.appliedSeq {
		return false
	}
	s.appliedSeq = seq

	s.items = make([]T, len(items))
	copy(s.items, items)
	s.rebuildIndex()

	s.loading = false
	s.loaded = true
	s.lastErr = nil
	s.generation++
	return true
}

// FetchFailed фиксирует ошибку выборки seq. Предыдущий снимок сохраняется;
// если успешных выборок ещё не было, зеркало остаётся пустым.
// Устаревшие ошибки (seq меньше применённой выборки) игнорируются.
func (s *Store[T]) FetchFailed(seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.appliedSeq {
		return
	}
	s.lastErr = err
	if !s.loaded {
		s.loading = false
	}
}

// ApplyCreated добавляет запись. Идемпотентно: запись с существующим
// ключом заменяется, а не дублируется. Запись без ключа получает
// временный ключ из текущего времени.
func (s *Store[T]) ApplyCreated(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.cfg.KeyOf(item)
	if key == "" {
		key = fmt.Sprintf("tmp-%d", time.Now().UnixNano())
		item = s.cfg.WithKey(item, key)
	}

	if pos, ok := s.index[key]; ok {
		s.items[pos] = item
	} else {
		s.index[key] = len(s.items)
		s.items = append(s.items, item)
	}
	s.generation++
}

// ApplyUpdated сливает патч с существующей записью.
// Патч для неизвестного ключа игнорируется.
func (s *Store[T]) ApplyUpdated(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.cfg.KeyOf(item)
	pos, ok := s.index[key]
	if !ok {
		return
	}
	s.items[pos] = s.cfg.Merge(s.items[pos], item)
	s.generation++
}

// ApplyDeleted удаляет запись по ключу. Неизвестный ключ — no-op.
func (s *Store[T]) ApplyDeleted(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[key]
	if !ok {
		return
	}
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	s.rebuildIndex()
	s.generation++
}

// List возвращает копию снимка в порядке хранения.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Get возвращает запись по ключу.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pos, ok := s.index[key]; ok {
		return s.items[pos], true
	}
	var zero T
	return zero, false
}

// Len возвращает число записей в снимке.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Loading сообщает, ожидается ли первая выборка.
func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Loaded сообщает, была ли хотя бы одна успешная выборка.
// Неудачная первая выборка снимает Loading, но не делает зеркало
// загруженным: readiness опирается на Loaded.
func (s *Store[T]) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Err возвращает ошибку последней выборки (nil после успешной).
func (s *Store[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Generation возвращает номер поколения снимка. Растёт при каждом
// изменении; используется как ключ кэша производных представлений.
func (s *Store[T]) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// rebuildIndex перестраивает индекс ключей. Вызывается под mu.
func (s *Store[T]) rebuildIndex() {
	s.index = make(map[string]int, len(s.items))
	for i, item := range s.items {
		s.index[s.cfg.KeyOf(item)] = i
	}
}
