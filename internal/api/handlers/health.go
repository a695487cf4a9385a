// health.go — обработчики health endpoints Mirror Module.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (первичная загрузка зеркал завершена)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thientangreen/mirror-module/internal/config"
)

var (
	promHandlerOnce sync.Once
	promHandler     http.Handler
)

// healthCheckResult — результат проверки одной коллекции.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "mirror-module",
	})
}

// HealthReady — readiness probe. Проверяет, что первичная загрузка
// всех зеркал завершена. Зеркало с ошибкой выборки, но с загруженным
// снимком считается degraded, не fail.
// Возвращает 200 (ok/degraded) или 503 (fail).
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "mirror-module",
		Checks:    make(map[string]healthCheckResult, 4),
	}

	resp.Status = "ok"
	for _, st := range h.catalog.Status() {
		check := healthCheckResult{Status: "ok"}
		switch {
		case !st.Loaded:
			check = healthCheckResult{Status: "fail", Message: "первичная загрузка не завершена"}
			resp.Status = "fail"
		case st.Error != "":
			check = healthCheckResult{Status: "degraded", Message: st.Error}
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		}
		resp.Checks[st.Entity] = check
	}

	status := http.StatusOK
	if resp.Status == "fail" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	promHandlerOnce.Do(func() {
		promHandler = promhttp.Handler()
	})
	promHandler.ServeHTTP(w, r)
}
