// Пакет auth — хранилище учётных данных (bearer-токена) каталога.
// Одна ячейка на процесс, инжектируется во все клиенты явно.
// Токен каталога подписан HS256 на стороне сервера; модуль его
// не валидирует, только читает claim exp для интроспекции срока жизни.
package auth

import (
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials — потокобезопасная ячейка с текущим access-токеном.
// Подписчики получают сигнал при каждом изменении (Set, Clear).
type Credentials struct {
	mu     sync.RWMutex
	token  string
	expiry time.Time

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int

	logger *slog.Logger
}

// NewCredentials создаёт пустую ячейку учётных данных.
func NewCredentials(logger *slog.Logger) *Credentials {
	return &Credentials{
		subs:   make(map[int]chan struct{}),
		logger: logger.With(slog.String("component", "credentials")),
	}
}

// Get возвращает текущий токен и признак его наличия.
func (c *Credentials) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// Set сохраняет новый токен и оповещает подписчиков.
// Срок жизни извлекается из claim exp без проверки подписи.
func (c *Credentials) Set(token string) {
	expiry := parseExpiry(token)

	c.mu.Lock()
	c.token = token
	c.expiry = expiry
	c.mu.Unlock()

	if !expiry.IsZero() {
		c.logger.Debug("Токен каталога обновлён", slog.Time("expires_at", expiry))
	} else {
		c.logger.Debug("Токен каталога обновлён, claim exp отсутствует")
	}

	c.notify()
}

// Clear сбрасывает токен (sign-out или невосстановимая ошибка refresh)
// и оповещает подписчиков.
func (c *Credentials) Clear() {
	c.mu.Lock()
	cleared := c.token != ""
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()

	if cleared {
		c.logger.Debug("Токен каталога сброшен")
		c.notify()
	}
}

// Expiry возвращает время истечения токена.
// Нулевое время — токен отсутствует или не содержит exp.
func (c *Credentials) Expiry() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiry
}

// ExpiresWithin сообщает, истекает ли токен в течение d.
// Без токена или без exp — false.
func (c *Credentials) ExpiresWithin(d time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" || c.expiry.IsZero() {
		return false
	}
	return time.Now().Add(d).After(c.expiry)
}

// Subscribe возвращает канал, получающий сигнал при каждом изменении
// ячейки, и функцию отписки. Канал буферизован: пропущенные сигналы
// схлопываются в один.
func (c *Credentials) Subscribe() (<-chan struct{}, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan struct{}, 1)
	c.subs[id] = ch

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
	return ch, cancel
}

// notify отправляет неблокирующий сигнал всем подписчикам.
func (c *Credentials) notify() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// parseExpiry извлекает claim exp из токена без валидации подписи.
// Возвращает нулевое время при любой ошибке разбора.
func parseExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
