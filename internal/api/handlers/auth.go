// auth.go — passthrough-аутентификация клиентов модуля в каталоге.
//
// Модуль не хранит пользовательские сессии: sign-in пробрасывается
// в каталог, access-токен возвращается клиенту и далее передаётся
// в заголовке Authorization для операций записи.
package handlers

import (
	"net/http"

	apierrors "github.com/thientangreen/mirror-module/internal/api/errors"
)

// signInBody — тело запроса POST /api/v1/auth/sign-in.
type signInBody struct {
	Account  string `json:"account"`
	Password string `json:"password_user"`
}

// SignIn обрабатывает POST /api/v1/auth/sign-in.
// Учётные данные проверяются локально и пробрасываются в каталог;
// служебная сессия модуля при этом не затрагивается.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var body signInBody
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.validator.SignIn(body.Account, body.Password); err != nil {
		h.writeServiceError(w, err)
		return
	}

	user, token, err := h.catalog.Client().Authenticate(r.Context(), body.Account, body.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"user":         user,
	})
}

// SignOut обрабатывает POST /api/v1/auth/sign-out —
// завершение сессии вызывающего в каталоге.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	// Выход от имени вызывающего: ячейка модуля не сбрасывается
	resp, err := client.Do(r.Context(), http.MethodPost, "/users/sign-out")
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		apierrors.Unauthorized(w, "Каталог отклонил sign-out")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// Profile обрабатывает GET /api/v1/auth/profile —
// профиль вызывающего из каталога.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	client, ok := h.callerClient(w, r)
	if !ok {
		return
	}

	user, err := client.Profile(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
