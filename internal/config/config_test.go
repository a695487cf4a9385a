package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"MM_UPSTREAM_URL": "http://api.thientan.lan",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.UpstreamBasePath != "/thientancay" {
		t.Errorf("UpstreamBasePath = %q, ожидается /thientancay", cfg.UpstreamBasePath)
	}
	if cfg.UpstreamTimeout != 15*time.Second {
		t.Errorf("UpstreamTimeout = %v, ожидается 15s", cfg.UpstreamTimeout)
	}
	if cfg.WSReconnectInitial != time.Second {
		t.Errorf("WSReconnectInitial = %v, ожидается 1s", cfg.WSReconnectInitial)
	}
	if cfg.WSReconnectMax != 30*time.Second {
		t.Errorf("WSReconnectMax = %v, ожидается 30s", cfg.WSReconnectMax)
	}
	if cfg.WSMaxRetries != 0 {
		t.Errorf("WSMaxRetries = %d, ожидается 0", cfg.WSMaxRetries)
	}
	if cfg.StrategyProduct != StrategyPatch {
		t.Errorf("StrategyProduct = %q, ожидается patch", cfg.StrategyProduct)
	}
	if cfg.StrategyFactory != StrategyRefetch {
		t.Errorf("StrategyFactory = %q, ожидается refetch", cfg.StrategyFactory)
	}
	if cfg.ViewCacheSize != 256 {
		t.Errorf("ViewCacheSize = %d, ожидается 256", cfg.ViewCacheSize)
	}
	if cfg.NoticeTTL != 5*time.Second {
		t.Errorf("NoticeTTL = %v, ожидается 5s", cfg.NoticeTTL)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 15s", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingUpstreamURL(t *testing.T) {
	t.Setenv("MM_UPSTREAM_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load() без MM_UPSTREAM_URL должен вернуть ошибку")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["MM_PORT"] = "9090"
	envs["MM_LOG_LEVEL"] = "debug"
	envs["MM_LOG_FORMAT"] = "text"
	envs["MM_UPSTREAM_BASE_PATH"] = "catalog/"
	envs["MM_UPSTREAM_TIMEOUT"] = "30s"
	envs["MM_UPSTREAM_ACCOUNT"] = "admin@thientan.com"
	envs["MM_UPSTREAM_PASSWORD"] = "Secret123!"
	envs["MM_WS_RECONNECT_INITIAL"] = "500ms"
	envs["MM_WS_MAX_RETRIES"] = "10"
	envs["MM_STRATEGY_PRODUCT"] = "refetch"
	envs["MM_STRATEGY_USERS"] = "patch"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	// Префикс нормализуется: ведущий слеш добавляется, trailing убирается
	if cfg.UpstreamBasePath != "/catalog" {
		t.Errorf("UpstreamBasePath = %q, ожидается /catalog", cfg.UpstreamBasePath)
	}
	if cfg.UpstreamTimeout != 30*time.Second {
		t.Errorf("UpstreamTimeout = %v, ожидается 30s", cfg.UpstreamTimeout)
	}
	if cfg.WSReconnectInitial != 500*time.Millisecond {
		t.Errorf("WSReconnectInitial = %v, ожидается 500ms", cfg.WSReconnectInitial)
	}
	if cfg.WSMaxRetries != 10 {
		t.Errorf("WSMaxRetries = %d, ожидается 10", cfg.WSMaxRetries)
	}
	if cfg.StrategyProduct != StrategyRefetch {
		t.Errorf("StrategyProduct = %q, ожидается refetch", cfg.StrategyProduct)
	}
	if cfg.StrategyUsers != StrategyPatch {
		t.Errorf("StrategyUsers = %q, ожидается patch", cfg.StrategyUsers)
	}
}

func TestLoad_AccountWithoutPassword(t *testing.T) {
	envs := minimalEnvs()
	envs["MM_UPSTREAM_ACCOUNT"] = "admin@thientan.com"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() с аккаунтом без пароля должен вернуть ошибку")
	}
}

func TestLoad_InvalidStrategy(t *testing.T) {
	envs := minimalEnvs()
	envs["MM_STRATEGY_PRODUCT"] = "merge"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() с недопустимой стратегией должен вернуть ошибку")
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		name     string
		upstream string
		entity   string
		want     string
	}{
		{"http → ws", "http://api.thientan.lan", "product", "ws://api.thientan.lan/ws/product"},
		{"https → wss", "https://api.thientan.lan", "users", "wss://api.thientan.lan/ws/users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{UpstreamURL: tt.upstream}
			if got := cfg.WebSocketURL(tt.entity); got != tt.want {
				t.Errorf("WebSocketURL(%q) = %q, ожидается %q", tt.entity, got, tt.want)
			}
		})
	}
}

func TestRESTBaseURL(t *testing.T) {
	cfg := &Config{UpstreamURL: "http://api.thientan.lan", UpstreamBasePath: "/thientancay"}
	want := "http://api.thientan.lan/thientancay"
	if got := cfg.RESTBaseURL(); got != want {
		t.Errorf("RESTBaseURL() = %q, ожидается %q", got, want)
	}
}
