// handler.go — основной обработчик HTTP API Mirror Module.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/thientangreen/mirror-module/internal/api/errors"
	"github.com/thientangreen/mirror-module/internal/domain/model"
	"github.com/thientangreen/mirror-module/internal/service"
	"github.com/thientangreen/mirror-module/internal/upstream"
)

// Handler — обработчик HTTP API Mirror Module.
type Handler struct {
	catalog   *service.CatalogService
	views     *service.ViewService
	notices   *service.NoticeBoard
	validator *service.Validator
	dephealth *service.DephealthService // может быть nil
	sse       time.Duration
	logger    *slog.Logger
}

// NewHandler создаёт основной обработчик API.
// dephealth может быть nil, если мониторинг зависимостей отключён.
func NewHandler(
	catalog *service.CatalogService,
	views *service.ViewService,
	notices *service.NoticeBoard,
	validator *service.Validator,
	dephealth *service.DephealthService,
	sseInterval time.Duration,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		catalog:   catalog,
		views:     views,
		notices:   notices,
		validator: validator,
		dephealth: dephealth,
		sse:       sseInterval,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// Routes регистрирует маршруты API на роутере.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Get("/metrics", h.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/options", h.ProductOptions)
			r.Get("/{id}", h.GetProduct)
			r.Post("/", h.CreateProduct)
			r.Patch("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})

		r.Route("/factories", func(r chi.Router) {
			r.Get("/", h.ListFactories)
			r.Post("/", h.CreateFactory)
			r.Patch("/{id}", h.UpdateFactory)
			r.Delete("/{id}", h.DeleteFactory)
		})

		r.Route("/locations", func(r chi.Router) {
			r.Get("/", h.ListLocations)
			r.Post("/", h.CreateLocation)
			r.Patch("/{id}", h.UpdateLocation)
			r.Delete("/{id}", h.DeleteLocation)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Patch("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/status", h.StatusStats)
			r.Get("/yearly", h.YearlyStats)
			r.Get("/factories", h.FactoryStats)
			r.Get("/locations", h.LocationStats)
		})

		r.Get("/report", h.GetReport)
		r.Get("/events", h.HandleEvents)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/sign-in", h.SignIn)
			r.Post("/sign-out", h.SignOut)
			r.Get("/profile", h.Profile)
		})
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// bearerToken извлекает bearer-токен из заголовка Authorization.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// callerClient возвращает клиент каталога с токеном вызывающего.
// Операции записи выполняются от имени клиента модуля, не от имени
// служебной учётной записи.
func (h *Handler) callerClient(w http.ResponseWriter, r *http.Request) (*upstream.Client, bool) {
	token, ok := bearerToken(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется заголовок Authorization: Bearer <token>")
		return nil, false
	}
	return h.catalog.Client().WithToken(token), true
}

// criteriaFromQuery собирает критерии фильтрации из query-параметров.
func criteriaFromQuery(r *http.Request) model.FilterCriteria {
	q := r.URL.Query()
	c := model.FilterCriteria{
		Type:       q.Get("type"),
		Media:      q.Get("media"),
		Status:     q.Get("status"),
		FactoryID:  q.Get("factory_id"),
		LocationID: q.Get("location_id"),
	}
	if year, err := strconv.Atoi(q.Get("year")); err == nil {
		c.Year = year
	}
	return c
}

// pageFromQuery возвращает номер страницы (минимум 1).
func pageFromQuery(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, upstream.ErrUnauthorized),
		errors.Is(err, upstream.ErrNoCredentials):
		apierrors.Unauthorized(w, "Каталог отклонил учётные данные")
	case errors.Is(err, service.ErrMirrorLoading):
		apierrors.MirrorLoading(w, "Зеркало каталога ещё загружается")
	default:
		h.logger.Error("Ошибка обращения к каталогу", slog.String("error", err.Error()))
		apierrors.UpstreamUnavailable(w, "Сервер каталога недоступен")
	}
}
