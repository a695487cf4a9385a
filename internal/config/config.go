// Пакет config — загрузка и валидация конфигурации Mirror Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Стратегии согласования зеркала при входящих событиях.
const (
	StrategyPatch   = "patch"
	StrategyRefetch = "refetch"
)

// Config содержит все параметры конфигурации Mirror Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Сервер каталога (upstream) ---

	// Базовый URL REST API каталога (например, http://api.thientan.lan)
	UpstreamURL string
	// Префикс пути REST API (по умолчанию /thientancay)
	UpstreamBasePath string
	// Таймаут HTTP-запросов к каталогу
	UpstreamTimeout time.Duration
	// Учётная запись для sign-in (опционально; без неё — degraded-режим)
	UpstreamAccount string
	// Пароль учётной записи
	UpstreamPassword string

	// --- WebSocket ---

	// Начальный интервал переподключения
	WSReconnectInitial time.Duration
	// Максимальный интервал переподключения
	WSReconnectMax time.Duration
	// Максимальное число попыток переподключения (0 — без ограничения)
	WSMaxRetries int

	// --- Стратегии согласования (patch, refetch) ---

	// Стратегия для коллекции product
	StrategyProduct string
	// Стратегия для коллекции factory
	StrategyFactory string
	// Стратегия для коллекции location
	StrategyLocation string
	// Стратегия для коллекции users
	StrategyUsers string

	// --- Кэш производных представлений ---

	// Максимальное число записей LRU-кэша представлений
	ViewCacheSize int
	// TTL записи кэша представлений
	ViewCacheTTL time.Duration

	// --- Уведомления и SSE ---

	// Время жизни уведомления
	NoticeTTL time.Duration
	// Интервал отправки SSE-обновлений
	SSEInterval time.Duration

	// --- topologymetrics ---

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// MM_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("MM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("MM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("MM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// MM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MM_LOG_LEVEL: %w", err)
	}

	// MM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Сервер каталога ---

	// MM_UPSTREAM_URL — обязательный
	cfg.UpstreamURL, err = getEnvRequired("MM_UPSTREAM_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.UpstreamURL = strings.TrimRight(cfg.UpstreamURL, "/")
	if _, parseErr := url.Parse(cfg.UpstreamURL); parseErr != nil {
		return nil, fmt.Errorf("MM_UPSTREAM_URL: некорректный URL %q: %w", cfg.UpstreamURL, parseErr)
	}

	// MM_UPSTREAM_BASE_PATH — префикс REST API (по умолчанию /thientancay)
	cfg.UpstreamBasePath = getEnvDefault("MM_UPSTREAM_BASE_PATH", "/thientancay")
	if !strings.HasPrefix(cfg.UpstreamBasePath, "/") {
		cfg.UpstreamBasePath = "/" + cfg.UpstreamBasePath
	}
	cfg.UpstreamBasePath = strings.TrimRight(cfg.UpstreamBasePath, "/")

	// MM_UPSTREAM_TIMEOUT — таймаут HTTP-запросов (по умолчанию 15s)
	cfg.UpstreamTimeout, err = getEnvDuration("MM_UPSTREAM_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_UPSTREAM_TIMEOUT: %w", err)
	}

	// MM_UPSTREAM_ACCOUNT / MM_UPSTREAM_PASSWORD — опциональная пара
	cfg.UpstreamAccount = getEnvDefault("MM_UPSTREAM_ACCOUNT", "")
	cfg.UpstreamPassword = getEnvDefault("MM_UPSTREAM_PASSWORD", "")
	if (cfg.UpstreamAccount == "") != (cfg.UpstreamPassword == "") {
		return nil, fmt.Errorf("MM_UPSTREAM_ACCOUNT и MM_UPSTREAM_PASSWORD задаются только вместе")
	}

	// --- WebSocket ---

	// MM_WS_RECONNECT_INITIAL — начальный интервал переподключения (по умолчанию 1s)
	cfg.WSReconnectInitial, err = getEnvDuration("MM_WS_RECONNECT_INITIAL", time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_WS_RECONNECT_INITIAL: %w", err)
	}

	// MM_WS_RECONNECT_MAX — максимальный интервал переподключения (по умолчанию 30s)
	cfg.WSReconnectMax, err = getEnvDuration("MM_WS_RECONNECT_MAX", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_WS_RECONNECT_MAX: %w", err)
	}

	// MM_WS_MAX_RETRIES — лимит попыток переподключения (по умолчанию 0 — без лимита)
	cfg.WSMaxRetries, err = getEnvInt("MM_WS_MAX_RETRIES", 0)
	if err != nil {
		return nil, fmt.Errorf("MM_WS_MAX_RETRIES: %w", err)
	}
	if cfg.WSMaxRetries < 0 {
		return nil, fmt.Errorf("MM_WS_MAX_RETRIES: значение %d не может быть отрицательным", cfg.WSMaxRetries)
	}

	// --- Стратегии согласования ---

	// MM_STRATEGY_PRODUCT — стратегия для product (по умолчанию patch)
	cfg.StrategyProduct, err = parseStrategy("MM_STRATEGY_PRODUCT", StrategyPatch)
	if err != nil {
		return nil, err
	}

	// MM_STRATEGY_FACTORY — стратегия для factory (по умолчанию refetch)
	cfg.StrategyFactory, err = parseStrategy("MM_STRATEGY_FACTORY", StrategyRefetch)
	if err != nil {
		return nil, err
	}

	// MM_STRATEGY_LOCATION — стратегия для location (по умолчанию refetch)
	cfg.StrategyLocation, err = parseStrategy("MM_STRATEGY_LOCATION", StrategyRefetch)
	if err != nil {
		return nil, err
	}

	// MM_STRATEGY_USERS — стратегия для users (по умолчанию refetch)
	cfg.StrategyUsers, err = parseStrategy("MM_STRATEGY_USERS", StrategyRefetch)
	if err != nil {
		return nil, err
	}

	// --- Кэш представлений ---

	// MM_VIEW_CACHE_SIZE — размер LRU-кэша (по умолчанию 256)
	cfg.ViewCacheSize, err = getEnvInt("MM_VIEW_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("MM_VIEW_CACHE_SIZE: %w", err)
	}
	if cfg.ViewCacheSize < 1 {
		return nil, fmt.Errorf("MM_VIEW_CACHE_SIZE: значение %d должно быть положительным", cfg.ViewCacheSize)
	}

	// MM_VIEW_CACHE_TTL — TTL кэша представлений (по умолчанию 30s)
	cfg.ViewCacheTTL, err = getEnvDuration("MM_VIEW_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_VIEW_CACHE_TTL: %w", err)
	}

	// --- Уведомления и SSE ---

	// MM_NOTICE_TTL — время жизни уведомления (по умолчанию 5s)
	cfg.NoticeTTL, err = getEnvDuration("MM_NOTICE_TTL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_NOTICE_TTL: %w", err)
	}

	// MM_SSE_INTERVAL — интервал SSE-обновлений (по умолчанию 5s)
	cfg.SSEInterval, err = getEnvDuration("MM_SSE_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_SSE_INTERVAL: %w", err)
	}

	// --- topologymetrics ---

	// MM_DEPHEALTH_GROUP — имя группы (по умолчанию thientan)
	cfg.DephealthGroup = getEnvDefault("MM_DEPHEALTH_GROUP", "thientan")

	// MM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("MM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// MM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("MM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// RESTBaseURL возвращает полный базовый URL REST API каталога.
func (c *Config) RESTBaseURL() string {
	return c.UpstreamURL + c.UpstreamBasePath
}

// WebSocketURL возвращает URL WebSocket endpoint'а коллекции.
// Схема выводится из MM_UPSTREAM_URL: http → ws, https → wss.
func (c *Config) WebSocketURL(entity string) string {
	wsURL := c.UpstreamURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return wsURL + "/ws/" + entity
}

// Strategy возвращает стратегию согласования для коллекции.
// Для неизвестной коллекции — refetch.
func (c *Config) Strategy(entity string) string {
	switch entity {
	case "product":
		return c.StrategyProduct
	case "factory":
		return c.StrategyFactory
	case "location":
		return c.StrategyLocation
	case "users":
		return c.StrategyUsers
	}
	return StrategyRefetch
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseStrategy читает стратегию согласования из переменной окружения.
func parseStrategy(key, defaultVal string) (string, error) {
	val := strings.ToLower(getEnvDefault(key, defaultVal))
	if val != StrategyPatch && val != StrategyRefetch {
		return "", fmt.Errorf("%s: недопустимое значение %q, допустимые: patch, refetch", key, val)
	}
	return val, nil
}
