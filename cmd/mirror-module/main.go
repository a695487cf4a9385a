// Точка входа Mirror Module — зеркало каталога Thiên Tân.
// Загружает конфигурацию, создаёт upstream-клиент каталога,
// выполняет sign-in и первичную синхронизацию зеркала,
// запускает WebSocket-подписки, topologymetrics и HTTP-сервер
// с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/thientangreen/mirror-module/internal/api/handlers"
	"github.com/thientangreen/mirror-module/internal/auth"
	"github.com/thientangreen/mirror-module/internal/config"
	"github.com/thientangreen/mirror-module/internal/server"
	"github.com/thientangreen/mirror-module/internal/service"
	"github.com/thientangreen/mirror-module/internal/upstream"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Mirror Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("upstream", cfg.RESTBaseURL()),
	)

	// Предупреждения о дефолтных значениях topologymetrics
	if os.Getenv("MM_DEPHEALTH_GROUP") == "" {
		logger.Warn("MM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Ячейка учётных данных и HTTP-клиент каталога
	creds := auth.NewCredentials(logger)
	client, err := upstream.New(cfg.RESTBaseURL(), cfg.UpstreamTimeout, creds, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента каталога", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Доска уведомлений (транслируются в SSE-поток)
	notices := service.NewNoticeBoard(cfg.NoticeTTL)

	// 5. Сервис зеркала каталога: REST-синхронизация + WebSocket-события
	catalogSvc := service.NewCatalogService(cfg, client, creds, notices, logger)

	// 6. Сервис производных представлений (фильтры, статистика, галерея)
	viewSvc := service.NewViewService(catalogSvc, cfg.ViewCacheSize, cfg.ViewCacheTTL)

	// 7. Валидатор входных данных API
	validatorSvc := service.NewValidator()

	// 8. topologymetrics — мониторинг доступности каталога
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"mirror-module",
		cfg.DephealthGroup,
		cfg.RESTBaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	}

	// 9. Запуск фоновых сервисов
	ctx := context.Background()
	catalogSvc.Start(ctx)

	if dephealthSvc != nil {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
			dephealthSvc = nil
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. API handler и HTTP-сервер
	apiHandler := handlers.NewHandler(
		catalogSvc,
		viewSvc,
		notices,
		validatorSvc,
		dephealthSvc, // может быть nil — SSE сообщит upstream: unavailable
		cfg.SSEInterval,
		logger,
	)

	srv := server.New(cfg, logger, apiHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Graceful shutdown фоновых сервисов
	logger.Info("Останавливаем фоновые сервисы...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	catalogSvc.Stop()

	logger.Info("Mirror Module остановлен")
}
