// entities.go — обработчики справочников: питомники, локации, учётные записи.
//
// Списки обслуживаются зеркалом (narrowing name_local — каталогом),
// операции записи пробрасываются в каталог с токеном вызывающего.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/thientangreen/mirror-module/internal/api/errors"
	"github.com/thientangreen/mirror-module/internal/domain/model"
)

// ListFactories обрабатывает GET /api/v1/factories.
// Параметр name_local запрашивает срез по локации напрямую из каталога.
func (h *Handler) ListFactories(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name_local"); name != "" {
		factories, err := h.catalog.Client().FactoriesByLocal(r.Context(), name)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": factories, "total": len(factories)})
		return
	}

	items := h.catalog.Factories().List()
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// ListLocations обрабатывает GET /api/v1/locations.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	items := h.catalog.Locations().List()
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// ListUsers обрабатывает GET /api/v1/users. Список учётных записей
// доступен только с токеном вызывающего: зеркало users отдаётся без
// проверки ролей, но без авторизации не отдаётся вовсе.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := bearerToken(r); !ok {
		apierrors.Unauthorized(w, "Требуется заголовок Authorization: Bearer <token>")
		return
	}
	items := h.catalog.Users().List()
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// decodeBody декодирует JSON-тело запроса.
func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		apierrors.ValidationError(w, "Некорректное JSON-тело запроса: "+err.Error())
		return false
	}
	return true
}

// --- Питомники ---

// CreateFactory обрабатывает POST /api/v1/factories.
func (h *Handler) CreateFactory(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	var factory model.Factory
	if !decodeBody(w, r, &factory) {
		return
	}
	if err := h.validator.Factory(factory); err != nil {
		h.writeServiceError(w, err)
		return
	}

	created, err := client.CreateFactory(r.Context(), factory)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateFactory обрабатывает PATCH /api/v1/factories/{id}.
func (h *Handler) UpdateFactory(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	var factory model.Factory
	if !decodeBody(w, r, &factory) {
		return
	}

	updated, err := client.UpdateFactory(r.Context(), chi.URLParam(r, "id"), factory)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteFactory обрабатывает DELETE /api/v1/factories/{id}.
func (h *Handler) DeleteFactory(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := client.DeleteFactory(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// --- Локации ---

// CreateLocation обрабатывает POST /api/v1/locations.
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	var location model.Location
	if !decodeBody(w, r, &location) {
		return
	}
	if err := h.validator.Location(location); err != nil {
		h.writeServiceError(w, err)
		return
	}

	created, err := client.CreateLocation(r.Context(), location)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateLocation обрабатывает PATCH /api/v1/locations/{id}.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	var location model.Location
	if !decodeBody(w, r, &location) {
		return
	}

	updated, err := client.UpdateLocation(r.Context(), chi.URLParam(r, "id"), location)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteLocation обрабатывает DELETE /api/v1/locations/{id}.
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := client.DeleteLocation(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// --- Учётные записи ---

// CreateUser обрабатывает POST /api/v1/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	var user model.User
	if !decodeBody(w, r, &user) {
		return
	}
	if err := h.validator.User(user, true); err != nil {
		h.writeServiceError(w, err)
		return
	}

	created, err := client.CreateUser(r.Context(), user)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateUser обрабатывает PATCH /api/v1/users/{id}.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	var user model.User
	if !decodeBody(w, r, &user) {
		return
	}
	if err := h.validator.UserPatch(user); err != nil {
		h.writeServiceError(w, err)
		return
	}

	updated, err := client.UpdateUser(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteUser обрабатывает DELETE /api/v1/users/{id}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := client.DeleteUser(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
