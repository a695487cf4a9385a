// catalog.go — центральный сервис зеркала каталога.
//
// CatalogService владеет четырьмя зеркалами коллекций (product, factory,
// location, users), HTTP-клиентом каталога и WebSocket-подключениями.
//
// Start выполняет:
//  1. Sign-in по учётной записи из конфигурации (опционально)
//  2. Первичную постраничную загрузку всех коллекций
//  3. Запуск WebSocket-подключений с диспетчеризацией событий
//  4. Фоновое обновление токена до истечения срока действия
//
// Prometheus-метрики:
//   - mm_sync_duration_seconds — длительность загрузки коллекции
//   - mm_sync_items_total — количество загруженных записей
//   - mm_sync_errors_total — количество неудачных загрузок
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/thientangreen/mirror-module/internal/auth"
	"github.com/thientangreen/mirror-module/internal/config"
	"github.com/thientangreen/mirror-module/internal/domain/model"
	"github.com/thientangreen/mirror-module/internal/mirror"
	"github.com/thientangreen/mirror-module/internal/stream"
	"github.com/thientangreen/mirror-module/internal/upstream"
)

// Prometheus-метрики синхронизации зеркала.
var (
	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mm_sync_duration_seconds",
		Help:    "Длительность загрузки коллекции из каталога",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms … ~25s
	}, []string{"entity"})

	syncItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_sync_items_total",
		Help: "Количество записей, загруженных при синхронизации",
	}, []string{"entity"})

	syncErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_sync_errors_total",
		Help: "Количество неудачных синхронизаций коллекций",
	}, []string{"entity"})
)

// Интервал проверки срока действия токена и запас до истечения,
// при котором выполняется повторный sign-in.
const (
	tokenCheckInterval = time.Minute
	tokenExpiryMargin  = 2 * time.Minute
)

// CatalogService — зеркало каталога с горячими обновлениями.
type CatalogService struct {
	cfg     *config.Config
	client  *upstream.Client
	creds   *auth.Credentials
	notices *NoticeBoard
	logger  *slog.Logger

	products  *mirror.Store[model.Product]
	factories *mirror.Store[model.Factory]
	locations *mirror.Store[model.Location]
	users     *mirror.Store[model.User]

	conns []*stream.Conn

	// Защита от параллельных перезагрузок одной коллекции
	refetchMu  sync.Mutex
	refetching map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewCatalogService создаёт сервис зеркала каталога.
func NewCatalogService(cfg *config.Config, client *upstream.Client, creds *auth.Credentials, notices *NoticeBoard, logger *slog.Logger) *CatalogService {
	s := &CatalogService{
		cfg:        cfg,
		client:     client,
		creds:      creds,
		notices:    notices,
		logger:     logger.With(slog.String("component", "catalog")),
		products:   mirror.NewProductStore(),
		factories:  mirror.NewFactoryStore(),
		locations:  mirror.NewLocationStore(),
		users:      mirror.NewUserStore(),
		refetching: map[string]bool{},
	}

	dispatcher := stream.NewDispatcher(
		s.products, s.factories, s.locations, s.users,
		map[string]string{
			model.EntityProduct:  cfg.StrategyProduct,
			model.EntityFactory:  cfg.StrategyFactory,
			model.EntityLocation: cfg.StrategyLocation,
			model.EntityUsers:    cfg.StrategyUsers,
		},
		s.Refetch,
		logger,
	)

	policy := stream.ReconnectPolicy{
		Initial:    cfg.WSReconnectInitial,
		Max:        cfg.WSReconnectMax,
		MaxRetries: cfg.WSMaxRetries,
	}
	for _, entity := range []string{model.EntityProduct, model.EntityFactory, model.EntityLocation, model.EntityUsers} {
		s.conns = append(s.conns, stream.NewConn(
			entity,
			cfg.WebSocketURL(entity),
			creds,
			policy,
			dispatcher.HandleEvent,
			s.onStreamDown,
			logger,
		))
	}

	return s
}

// Зеркала коллекций. Снимки согласованы только в пределах одной коллекции.

func (s *CatalogService) Products() *mirror.Store[model.Product] { return s.products }

func (s *CatalogService) Factories() *mirror.Store[model.Factory] { return s.factories }

func (s *CatalogService) Locations() *mirror.Store[model.Location] { return s.locations }

func (s *CatalogService) Users() *mirror.Store[model.User] { return s.users }

// Client возвращает HTTP-клиент каталога.
func (s *CatalogService) Client() *upstream.Client { return s.client }

// Start выполняет sign-in, первичную загрузку и запускает
// WebSocket-подключения. Недоступность каталога не является фатальной:
// сервис стартует с пустым зеркалом и продолжает попытки в фоне.
func (s *CatalogService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	if s.cfg.UpstreamAccount != "" {
		if _, err := s.client.SignIn(ctx, s.cfg.UpstreamAccount, s.cfg.UpstreamPassword); err != nil {
			s.logger.Warn("Sign-in к каталогу не выполнен, зеркало в degraded-режиме",
				slog.String("error", err.Error()),
			)
			s.notices.Publish(NoticeError, "Không thể đăng nhập vào máy chủ danh mục")
		} else {
			s.logger.Info("Sign-in к каталогу выполнен",
				slog.String("account", s.cfg.UpstreamAccount),
			)
		}
	} else {
		s.logger.Info("Учётная запись каталога не задана, работа без авторизации")
	}

	s.SyncAll(ctx)

	for _, conn := range s.conns {
		conn.Start(ctx)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tokenLoop(ctx)
	}()

	go func() {
		s.wg.Wait()
		close(s.done)
	}()
}

// Stop останавливает подключения и фоновые горутины.
func (s *CatalogService) Stop() {
	for _, conn := range s.conns {
		conn.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}

	// Best-effort sign-out с отдельным коротким контекстом
	if s.cfg.UpstreamAccount != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.client.SignOut(ctx); err != nil {
			s.logger.Debug("Sign-out не выполнен", slog.String("error", err.Error()))
		}
	}
}

// SyncAll загружает все коллекции параллельно.
func (s *CatalogService) SyncAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, entity := range []string{model.EntityProduct, model.EntityFactory, model.EntityLocation, model.EntityUsers} {
		wg.Add(1)
		go func(entity string) {
			defer wg.Done()
			if err := s.syncEntity(ctx, entity); err != nil {
				s.logger.Warn("Первичная загрузка коллекции не выполнена",
					slog.String("entity", entity),
					slog.String("error", err.Error()),
				)
			}
		}(entity)
	}
	wg.Wait()
}

// Refetch запускает асинхронную перезагрузку коллекции.
// Повторный вызов для коллекции с незавершённой перезагрузкой — no-op.
// Реализует stream.Refetcher.
func (s *CatalogService) Refetch(entity string) {
	s.refetchMu.Lock()
	if s.refetching[entity] {
		s.refetchMu.Unlock()
		return
	}
	s.refetching[entity] = true
	s.refetchMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.refetchMu.Lock()
			s.refetching[entity] = false
			s.refetchMu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.UpstreamTimeout*3)
		defer cancel()
		if err := s.syncEntity(ctx, entity); err != nil {
			s.logger.Warn("Перезагрузка коллекции не выполнена",
				slog.String("entity", entity),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// syncEntity выполняет постраничную загрузку одной коллекции и
// атомарно заменяет снимок зеркала. Устаревшие ответы отбрасываются
// по номеру последовательности зеркала.
func (s *CatalogService) syncEntity(ctx context.Context, entity string) error {
	start := time.Now()

	var count int
	var err error
	switch entity {
	case model.EntityProduct:
		count, err = syncStore(ctx, s.products, s.client.ListProducts)
	case model.EntityFactory:
		count, err = syncStore(ctx, s.factories, s.client.ListFactories)
	case model.EntityLocation:
		count, err = syncStore(ctx, s.locations, s.client.ListLocations)
	case model.EntityUsers:
		count, err = syncStore(ctx, s.users, s.client.ListUsers)
	default:
		return fmt.Errorf("неизвестная коллекция %q", entity)
	}

	duration := time.Since(start).Seconds()
	syncDuration.WithLabelValues(entity).Observe(duration)
	if err != nil {
		syncErrorsTotal.WithLabelValues(entity).Inc()
		return err
	}

	syncItemsTotal.WithLabelValues(entity).Add(float64(count))
	s.logger.Info("Коллекция загружена",
		slog.String("entity", entity),
		slog.Int("count", count),
		slog.String("duration", fmt.Sprintf("%.2fs", duration)),
	)
	return nil
}

// syncStore — постраничная загрузка коллекции в зеркало.
// Каталог ограничивает limit значением меньше 100, поэтому загрузка
// идёт страницами по upstream.MaxPageLimit.
func syncStore[T any](
	ctx context.Context,
	store *mirror.Store[T],
	list func(ctx context.Context, page, limit int) ([]T, *upstream.Paging, error),
) (int, error) {
	seq := store.BeginFetch()

	var all []T
	page := 1
	for {
		if ctx.Err() != nil {
			store.FetchFailed(seq, ctx.Err())
			return 0, ctx.Err()
		}

		items, paging, err := list(ctx, page, upstream.MaxPageLimit)
		if err != nil {
			store.FetchFailed(seq, err)
			return 0, err
		}
		all = append(all, items...)

		// Конец достигнут, если страница неполная или пройден total
		if len(items) < upstream.MaxPageLimit {
			break
		}
		if paging != nil && paging.Total > 0 && int64(len(all)) >= paging.Total {
			break
		}
		page++
	}

	store.Replace(seq, all)
	return len(all), nil
}

// tokenLoop следит за сроком действия токена и выполняет повторный
// sign-in до его истечения. Без учётной записи цикл простаивает до
// завершения контекста.
func (s *CatalogService) tokenLoop(ctx context.Context) {
	if s.cfg.UpstreamAccount == "" {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(tokenCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, ok := s.creds.Get(); ok && !s.creds.ExpiresWithin(tokenExpiryMargin) {
				continue
			}
			if _, err := s.client.SignIn(ctx, s.cfg.UpstreamAccount, s.cfg.UpstreamPassword); err != nil {
				s.logger.Warn("Обновление токена каталога не выполнено",
					slog.String("error", err.Error()),
				)
				continue
			}
			s.logger.Info("Токен каталога обновлён")
		}
	}
}

// onStreamDown вызывается при исчерпании попыток переподключения.
func (s *CatalogService) onStreamDown(entity string, err error) {
	s.logger.Error("Поток обновлений коллекции остановлен",
		slog.String("entity", entity),
		slog.String("error", err.Error()),
	)
	s.notices.Publish(NoticeError, "Mất kết nối cập nhật thời gian thực: "+entity)
}

// MirrorStatus — состояние зеркала одной коллекции.
type MirrorStatus struct {
	Entity  string `json:"entity"`
	Count   int    `json:"count"`
	Loading bool   `json:"loading"`
	Loaded  bool   `json:"loaded"`
	Error   string `json:"error,omitempty"`
}

// Status возвращает состояние всех зеркал (для SSE и readiness).
func (s *CatalogService) Status() []MirrorStatus {
	return []MirrorStatus{
		storeStatus(model.EntityProduct, s.products),
		storeStatus(model.EntityFactory, s.factories),
		storeStatus(model.EntityLocation, s.locations),
		storeStatus(model.EntityUsers, s.users),
	}
}

func storeStatus[T any](entity string, store *mirror.Store[T]) MirrorStatus {
	st := MirrorStatus{
		Entity:  entity,
		Count:   store.Len(),
		Loading: store.Loading(),
		Loaded:  store.Loaded(),
	}
	if err := store.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// Ready сообщает, завершена ли первичная загрузка всех коллекций.
// Неудачная первая выборка не делает сервис готовым: отдавать
// пустое, ни разу не загруженное зеркало нельзя.
func (s *CatalogService) Ready() bool {
	return s.products.Loaded() && s.factories.Loaded() &&
		s.locations.Loaded() && s.users.Loaded()
}
