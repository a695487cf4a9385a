// Пакет upstream — HTTP-клиент REST API каталога Thiên Tân.
// Аутентификация: bearer-токен из ячейки auth.Credentials, refresh-токен
// в cookie (cookie jar). Любой ответ 401 (кроме sign-in) прозрачно
// обрабатывается одним refresh-and-retry; повторная неудача сбрасывает
// ячейку учётных данных.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/thientangreen/mirror-module/internal/auth"
	"github.com/thientangreen/mirror-module/internal/domain/model"
)

// Ошибки клиента каталога.
var (
	// ErrUnauthorized — аутентификация не удалась и не восстановилась refresh'ем.
	ErrUnauthorized = errors.New("каталог отклонил учётные данные")
	// ErrNoCredentials — операция требует токен, а ячейка пуста.
	ErrNoCredentials = errors.New("учётные данные каталога отсутствуют")
)

// Client — HTTP-клиент REST API каталога.
type Client struct {
	baseURL    string // Полный базовый URL REST API (с префиксом /thientancay)
	httpClient *http.Client
	creds      *auth.Credentials
	logger     *slog.Logger

	// Сериализация refresh: одновременные 401 не должны
	// порождать параллельные refresh-запросы. Указатель, чтобы
	// копии из WithToken разделяли один мьютекс.
	refreshMu *sync.Mutex

	// Переопределение токена для passthrough-запросов
	// (запрос выполняется от имени вызывающего, не от имени модуля).
	tokenOverride string
}

// New создаёт клиент каталога.
// baseURL — полный базовый URL REST API (например, http://api.thientan.lan/thientancay).
func New(baseURL string, timeout time.Duration, creds *auth.Credentials, logger *slog.Logger) (*Client, error) {
	// Cookie jar хранит refresh-токен, который сервер выставляет cookie
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("создание cookie jar: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		creds:     creds,
		logger:    logger.With(slog.String("component", "upstream_client")),
		refreshMu: &sync.Mutex{},
	}, nil
}

// WithToken возвращает копию клиента, выполняющую запросы с указанным
// bearer-токеном вместо токена из ячейки. Refresh для такой копии
// не выполняется — токеном владеет вызывающий.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.tokenOverride = token
	return &clone
}

// --- Аутентификация ---

// signInRequest — тело запроса POST /users/sign-in.
type signInRequest struct {
	Account  string `json:"account"`
	Password string `json:"password_user"`
}

// SignIn выполняет вход в каталог и сохраняет полученный access-токен
// в ячейке учётных данных. Refresh-токен сервер выставляет cookie,
// его подхватывает cookie jar.
func (c *Client) SignIn(ctx context.Context, account, password string) (*model.User, error) {
	body, err := json.Marshal(signInRequest{Account: account, Password: password})
	if err != nil {
		return nil, fmt.Errorf("сериализация sign-in: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/sign-in", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("создание запроса sign-in: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос sign-in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("каталог вернул статус %d при sign-in: %s", resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("декодирование sign-in: %w", err)
	}
	if env.AccessToken == "" {
		return nil, fmt.Errorf("ответ sign-in не содержит access_token")
	}

	c.creds.Set(env.AccessToken)
	c.logger.Info("Вход в каталог выполнен", slog.String("account", account))

	// Профиль в data может отсутствовать, это не ошибка
	var user model.User
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &user)
	}
	return &user, nil
}

// Authenticate выполняет sign-in от имени стороннего пользователя и
// возвращает профиль с access-токеном, не сохраняя его в ячейке.
// Используется для passthrough-входа клиентов модуля.
func (c *Client) Authenticate(ctx context.Context, account, password string) (*model.User, string, error) {
	body, err := json.Marshal(signInRequest{Account: account, Password: password})
	if err != nil {
		return nil, "", fmt.Errorf("сериализация sign-in: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/sign-in", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("создание запроса sign-in: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("запрос sign-in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, "", ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("каталог вернул статус %d при sign-in: %s", resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, "", fmt.Errorf("декодирование sign-in: %w", err)
	}
	if env.AccessToken == "" {
		return nil, "", fmt.Errorf("ответ sign-in не содержит access_token")
	}

	var user model.User
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &user)
	}
	return &user, env.AccessToken, nil
}

// SignOut завершает сессию каталога и сбрасывает ячейку учётных данных.
// Локальная ячейка сбрасывается даже при ошибке запроса.
func (c *Client) SignOut(ctx context.Context) error {
	defer c.creds.Clear()

	resp, err := c.do(ctx, http.MethodPost, "/users/sign-out", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("каталог вернул статус %d при sign-out: %s", resp.StatusCode, string(raw))
	}
	c.logger.Info("Выход из каталога выполнен")
	return nil
}

// Profile возвращает профиль текущей учётной записи.
func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/users/profile", nil, "")
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := decodeEnvelope(resp, &user); err != nil {
		return nil, fmt.Errorf("Profile: %w", err)
	}
	return &user, nil
}

// refresh запрашивает новый access-токен по refresh-cookie.
// POST /users/refresh-token с пустым телом; cookie подставляет jar.
func (c *Client) refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/refresh-token", nil)
	if err != nil {
		return fmt.Errorf("создание запроса refresh: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("каталог вернул статус %d при refresh: %s", resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("декодирование refresh: %w", err)
	}
	if env.AccessToken == "" {
		return fmt.Errorf("ответ refresh не содержит access_token")
	}

	c.creds.Set(env.AccessToken)
	c.logger.Debug("Токен каталога обновлён через refresh")
	return nil
}

// --- HTTP helpers ---

// Do выполняет произвольный авторизованный запрос без тела.
// Используется для passthrough-операций от имени вызывающего
// (например, sign-out с чужим токеном, не трогающий ячейку модуля).
func (c *Client) Do(ctx context.Context, method, path string) (*http.Response, error) {
	return c.do(ctx, method, path, nil, "")
}

// do выполняет авторизованный запрос к каталогу.
// При ответе 401 — один прозрачный refresh-and-retry; повторный 401
// сбрасывает ячейку учётных данных и возвращает ErrUnauthorized.
// body используется дважды (retry), поэтому принимается как срез байт.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	resp, err := c.doOnce(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	// Запросы с чужим токеном не пытаемся обновлять
	if c.tokenOverride != "" {
		return nil, ErrUnauthorized
	}

	if refreshErr := c.refresh(ctx); refreshErr != nil {
		c.logger.Warn("Refresh токена не удался, сброс учётных данных",
			slog.String("error", refreshErr.Error()),
		)
		c.creds.Clear()
		return nil, ErrUnauthorized
	}

	resp, err = c.doOnce(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.creds.Clear()
		return nil, ErrUnauthorized
	}
	return resp, nil
}

// doOnce выполняет один запрос с текущим токеном.
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token := c.tokenOverride
	if token == "" {
		token, _ = c.creds.Get()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s %s: %w", method, path, err)
	}
	return resp, nil
}

// doJSON выполняет запрос с JSON-телом.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
	}
	return c.do(ctx, method, path, body, "application/json")
}

// decodeEnvelope проверяет статус ответа и декодирует поле data в target.
func decodeEnvelope(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("каталог вернул статус %d: %s", resp.StatusCode, string(raw))
	}

	if target == nil {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("декодирование ответа каталога: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("декодирование data: %w", err)
	}
	return nil
}

// checkResponse проверяет статус ответа без декодирования тела.
func checkResponse(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("каталог вернул статус %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
