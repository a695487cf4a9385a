// Пакет stream — WebSocket-подключения к каталогу и диспетчеризация событий.
//
// Conn держит одно подключение к ws(s)://<host>/ws/<entity>, проходит
// авторизацию query-параметром authorization, отправляет кадр подписки
// на комнату коллекции и передаёт входящие события диспетчеру.
// Разрыв соединения обрабатывается переподключением с экспоненциальным
// backoff (cenkalti/backoff); успешное сообщение сбрасывает backoff.
// Без учётных данных подключение не устанавливается: Conn ждёт сигнала
// от ячейки auth.Credentials.
//
// Prometheus-метрики:
//   - mm_ws_events_total — количество обработанных событий
//   - mm_ws_reconnects_total — количество переподключений
//   - mm_ws_connected — состояние подключения (1 — установлено)
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики WebSocket-подключений.
var (
	wsEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_ws_events_total",
		Help: "Количество событий каталога, полученных по WebSocket",
	}, []string{"entity", "action"})

	wsReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_ws_reconnects_total",
		Help: "Количество переподключений WebSocket к каталогу",
	}, []string{"entity"})

	wsConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mm_ws_connected",
		Help: "Состояние WebSocket-подключения к каталогу (1 — установлено)",
	}, []string{"entity"})
)

// Message — кадр протокола каталога: {"event": "...", "data": ...}.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EventFunc — обработчик распознанного события коллекции.
type EventFunc func(entity, action string, data json.RawMessage)

// CredentialSource — источник токена для авторизации подключения.
type CredentialSource interface {
	Get() (string, bool)
	Subscribe() (<-chan struct{}, func())
}

// ReconnectPolicy — единая политика переподключения для всех коллекций.
type ReconnectPolicy struct {
	// Начальный интервал backoff
	Initial time.Duration
	// Максимальный интервал backoff
	Max time.Duration
	// Лимит подряд неудачных попыток (0 — без лимита)
	MaxRetries int
}

// Conn — управляемое WebSocket-подключение к одной коллекции.
type Conn struct {
	entity  string
	wsURL   string
	creds   CredentialSource
	policy  ReconnectPolicy
	handler EventFunc
	onDown  func(entity string, err error) // уведомление о потере подключения (может быть nil)
	logger  *slog.Logger

	dialer *websocket.Dialer

	mu     sync.Mutex
	ws     *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConn создаёт подключение коллекции entity к wsURL.
// handler вызывается для каждого распознанного события.
// onDown (опционально) вызывается при исчерпании попыток переподключения.
func NewConn(entity, wsURL string, creds CredentialSource, policy ReconnectPolicy, handler EventFunc, onDown func(string, error), logger *slog.Logger) *Conn {
	return &Conn{
		entity:  entity,
		wsURL:   wsURL,
		creds:   creds,
		policy:  policy,
		handler: handler,
		onDown:  onDown,
		logger:  logger.With(slog.String("component", "stream"), slog.String("entity", entity)),
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Start запускает фоновую горутину подключения.
// Вызывается один раз при старте приложения.
func (c *Conn) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		c.run(ctx)
	}()
}

// Stop закрывает подключение и ждёт завершения горутины.
func (c *Conn) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.closeWS()
	if c.done != nil {
		<-c.done
	}
}

// run — основной цикл: ожидание учётных данных, подключение, чтение,
// переподключение с backoff.
func (c *Conn) run(ctx context.Context) {
	credCh, unsubscribe := c.creds.Subscribe()
	defer unsubscribe()

	bo := c.newBackOff()
	retries := 0

	for {
		if ctx.Err() != nil {
			return
		}

		token, ok := c.creds.Get()
		if !ok {
			// Без учётных данных подключение не устанавливается:
			// ждём появления токена или завершения
			c.logger.Debug("Учётные данные отсутствуют, подключение отложено")
			select {
			case <-ctx.Done():
				return
			case <-credCh:
				bo.Reset()
				retries = 0
				continue
			}
		}

		err := c.connectAndRead(ctx, token, credCh, func() {
			bo.Reset()
			retries = 0
		})
		if ctx.Err() != nil {
			return
		}

		wsConnected.WithLabelValues(c.entity).Set(0)
		retries++
		if c.policy.MaxRetries > 0 && retries >= c.policy.MaxRetries {
			c.logger.Error("Лимит переподключений исчерпан",
				slog.Int("retries", retries),
				slog.String("error", errString(err)),
			)
			if c.onDown != nil {
				c.onDown(c.entity, err)
			}
			// Дальнейшие попытки — только после смены учётных данных
			select {
			case <-ctx.Done():
				return
			case <-credCh:
				bo.Reset()
				retries = 0
				continue
			}
		}

		wait := bo.NextBackOff()
		c.logger.Warn("Соединение с каталогом потеряно, переподключение",
			slog.String("error", errString(err)),
			slog.Duration("retry_in", wait),
			slog.Int("attempt", retries),
		)
		wsReconnectsTotal.WithLabelValues(c.entity).Inc()

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		case <-credCh:
			// Смена учётных данных: пробуем сразу с новым токеном
			bo.Reset()
			retries = 0
		}
	}
}

// connectAndRead устанавливает подключение, подписывается на комнату
// и читает кадры до разрыва. onMessage вызывается после каждого
// успешно принятого кадра (сброс backoff).
func (c *Conn) connectAndRead(ctx context.Context, token string, credCh <-chan struct{}, onMessage func()) error {
	dialURL := c.wsURL + "?authorization=" + url.QueryEscape("Bearer "+token)

	ws, _, err := c.dialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return err
	}
	c.setWS(ws)
	defer c.closeWS()

	// Кадр подписки на комнату коллекции
	sub := Message{Event: "subscribe"}
	sub.Data, _ = json.Marshal(c.entity + "-room")
	if err := ws.WriteJSON(sub); err != nil {
		return err
	}

	wsConnected.WithLabelValues(c.entity).Set(1)
	c.logger.Info("Подключение к каталогу установлено")

	// Сброс или отзыв учётных данных закрывает текущее подключение
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-watchDone:
		case <-ctx.Done():
			c.closeWS()
		case <-credCh:
			c.logger.Debug("Учётные данные изменились, подключение закрывается")
			c.closeWS()
		}
	}()

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			return err
		}
		onMessage()
		c.handleMessage(msg)
	}
}

// handleMessage разбирает кадр и передаёт событие обработчику.
// Служебные подтверждения и нераспознанные события игнорируются.
func (c *Conn) handleMessage(msg Message) {
	switch msg.Event {
	case "", "connected", "subscribed":
		return
	}

	entity, action, ok := ParseEventName(msg.Event)
	if !ok {
		c.logger.Debug("Нераспознанное событие", slog.String("event", msg.Event))
		return
	}

	wsEventsTotal.WithLabelValues(entity, action).Inc()
	c.handler(entity, action, msg.Data)
}

// newBackOff создаёт экспоненциальный backoff по политике подключения.
func (c *Conn) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.policy.Initial
	bo.MaxInterval = c.policy.Max
	bo.MaxElapsedTime = 0 // без ограничения по времени, лимит — в попытках
	bo.Reset()
	return bo
}

func (c *Conn) setWS(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

func (c *Conn) closeWS() {
	c.mu.Lock()
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
	c.mu.Unlock()
}

// ParseEventName разбирает имя события "<entity>:<action>".
// Распознаются коллекции product, factory, location, users
// и действия created, updated, deleted.
func ParseEventName(event string) (entity, action string, ok bool) {
	entity, action, found := strings.Cut(event, ":")
	if !found {
		return "", "", false
	}
	switch entity {
	case "product", "factory", "location", "users":
	default:
		return "", "", false
	}
	switch action {
	case "created", "updated", "deleted":
	default:
		return "", "", false
	}
	return entity, action, true
}

// errString возвращает текст ошибки или "<nil>".
func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
