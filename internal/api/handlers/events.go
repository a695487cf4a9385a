// events.go — SSE (Server-Sent Events) endpoint для real-time обновлений:
// состояние зеркал коллекций, статус зависимостей, активные уведомления.
// Каждый SSE-клиент обслуживается отдельной горутиной.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thientangreen/mirror-module/internal/service"
)

// mirrorStatusEvent — SSE-событие состояния зеркал.
type mirrorStatusEvent struct {
	Mirrors []service.MirrorStatus `json:"mirrors"`
	Ready   bool                   `json:"ready"`
	// Состояние сервера каталога по dephealth: online, offline, unavailable
	Upstream string `json:"upstream"`
}

// noticesEvent — SSE-событие активных уведомлений.
type noticesEvent struct {
	Notices []service.Notice `json:"notices"`
}

// HandleEvents обрабатывает GET /api/v1/events — SSE endpoint.
// Периодически (MM_SSE_INTERVAL) отправляет клиенту состояние зеркал
// и активные уведомления.
// Формат: event: mirror-status\ndata: {json}\n\n, event: notices\ndata: {json}\n\n
// Graceful disconnect при закрытии клиентом соединения (context cancel).
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	// Настраиваем заголовки SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Отключаем буферизацию Nginx

	// Используем http.ResponseController для корректной работы Flush()
	// через обёрнутый ResponseWriter (logging middleware и др.).
	// ResponseController вызывает Unwrap() и находит оригинальный http.Flusher.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "SSE не поддерживается", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()

	h.logger.Debug("SSE клиент подключён", slog.String("remote_addr", r.RemoteAddr))

	// Отправляем начальные данные сразу при подключении
	h.sendMirrorStatus(w, rc)
	h.sendNotices(w, rc)

	// Периодическая отправка
	ticker := time.NewTicker(h.sse)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Клиент отключился
			h.logger.Debug("SSE клиент отключён", slog.String("remote_addr", r.RemoteAddr))
			return
		case <-ticker.C:
			h.sendMirrorStatus(w, rc)
			h.sendNotices(w, rc)
		}
	}
}

// sendMirrorStatus отправляет SSE-событие состояния зеркал.
func (h *Handler) sendMirrorStatus(w http.ResponseWriter, rc *http.ResponseController) {
	event := mirrorStatusEvent{
		Mirrors:  h.catalog.Status(),
		Ready:    h.catalog.Ready(),
		Upstream: "unavailable",
	}
	if h.dephealth != nil {
		if findHealthByPrefix(h.dephealth.Health(), "thientan-catalog") {
			event.Upstream = "online"
		} else {
			event.Upstream = "offline"
		}
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Ошибка сериализации mirror-status", slog.String("error", err.Error()))
		return
	}

	// Формат SSE: event: mirror-status\ndata: {json}\n\n
	fmt.Fprintf(w, "event: mirror-status\ndata: %s\n\n", data)
	_ = rc.Flush()
}

// sendNotices отправляет SSE-событие активных уведомлений.
func (h *Handler) sendNotices(w http.ResponseWriter, rc *http.ResponseController) {
	data, err := json.Marshal(noticesEvent{Notices: h.notices.Active()})
	if err != nil {
		h.logger.Error("Ошибка сериализации notices", slog.String("error", err.Error()))
		return
	}

	fmt.Fprintf(w, "event: notices\ndata: %s\n\n", data)
	_ = rc.Flush()
}

// findHealthByPrefix ищет статус зависимости по префиксу имени.
// Health() из topologymetrics SDK возвращает ключи формата "dependency:host:port",
// поэтому ищем ключ, начинающийся с имени зависимости + ":".
// Если найдено несколько — возвращает true только если все healthy.
func findHealthByPrefix(health map[string]bool, prefix string) bool {
	found := false
	for key, ok := range health {
		if strings.HasPrefix(key, prefix+":") || key == prefix {
			if !ok {
				return false
			}
			found = true
		}
	}
	return found
}
