package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health/live", "/health/live"},
		{"/health/ready", "/health/ready"},
		{"/metrics", "/metrics"},
		{"/api/v1/products", "/api/v1/products"},
		{"/api/v1/products/options", "/api/v1/products/options"},
		{"/api/v1/products/abc123", "/api/v1/products/{id}"},
		{"/api/v1/factories/f-42", "/api/v1/factories/{id}"},
		{"/api/v1/locations/l1", "/api/v1/locations/{id}"},
		{"/api/v1/users/u9", "/api/v1/users/{id}"},
		{"/api/v1/stats/yearly", "/api/v1/stats/yearly"},
		{"/api/v1/auth/sign-in", "/api/v1/auth/sign-in"},
		{"/api/v1/events", "/api/v1/events"},
		// Вложенный путь после идентификатора не нормализуется
		{"/api/v1/products/abc/extra", "/api/v1/products/abc/extra"},
		{"/unknown/path", "/unknown/path"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.expected {
				t.Errorf("normalizePath(%q) = %q, ожидается %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/p1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("статус %d, ожидается 418", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("тело %q, ожидается ok", rec.Body.String())
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"успешный запрос", http.StatusOK, "INFO"},
		{"клиентская ошибка", http.StatusNotFound, "WARN"},
		{"серверная ошибка", http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			out := buf.String()
			if !strings.Contains(out, "level="+tt.level) {
				t.Errorf("уровень лога для статуса %d: %s, ожидается %s", tt.status, out, tt.level)
			}
			if !strings.Contains(out, "path=/api/v1/products") {
				t.Errorf("в логе нет пути запроса: %s", out)
			}
		})
	}
}

func TestResponseWriter_Unwrap(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// SSE-обработчику нужен Flush через обёртки обоих middleware
	handler := MetricsMiddleware()(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		if err := rc.Flush(); err != nil {
			t.Errorf("Flush через обёрнутый ResponseWriter: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("статус %d, ожидается 200", rec.Code)
	}
	if !rec.Flushed {
		t.Error("Flush не дошёл до исходного ResponseWriter")
	}
}
