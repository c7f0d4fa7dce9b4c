// client.go — HTTP-клиент к Patchview backend REST API.
// Все аутентифицированные операции принимают bearer token параметром —
// клиент не хранит состояние сессии, им владеет session.Controller.
// Операции: Login, Logout, UpdateProfile, ChangePassword, CheckAdminUsers,
// SetupAdmin, UserPermissions, DashboardStats, ListHosts,
// ListOutdatedPackages, ListUsers, CheckUpdates.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arturkryukov/patchview/console-module/internal/domain/model"
)

// APIError — ошибка backend API с HTTP-статусом и сообщением сервера.
// Формат тела ошибки backend: {"error": "сообщение"}.
type APIError struct {
	// StatusCode — HTTP статус-код ответа.
	StatusCode int
	// Message — сообщение об ошибке от сервера (или сырое тело ответа).
	Message string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend вернул статус %d: %s", e.StatusCode, e.Message)
}

// AsAPIError извлекает *APIError из цепочки ошибок.
// Возвращает nil, если ошибка не является ошибкой API
// (например, сетевая ошибка или таймаут).
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// Client — HTTP-клиент к Patchview backend REST API.
type Client struct {
	baseURL string // Базовый URL backend (без trailing slash)

	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент к Patchview backend API.
// baseURL — базовый URL backend (например, https://patchview.kryukov.lan).
// httpClient — HTTP-клиент (может содержать TLS конфигурацию), nil — дефолтный.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "backend_client")),
	}
}

// --- HTTP helpers ---

// do выполняет HTTP-запрос к backend API.
// token — bearer token (пустой для публичных endpoints).
func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	reqURL := c.baseURL + "/api/v1" + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// decodeResponse декодирует JSON ответ в target.
// На не-2xx статус возвращает *APIError с сообщением сервера.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFromResponse(resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("декодирование ответа backend: %w", err)
		}
	}

	return nil
}

// checkResponse проверяет статус ответа (для запросов без тела ответа).
func checkResponse(resp *http.Response, expectedStatus int) error {
	defer resp.Body.Close()

	if resp.StatusCode != expectedStatus {
		return apiErrorFromResponse(resp)
	}

	return nil
}

// apiErrorFromResponse строит *APIError из тела ответа.
// Backend отдаёт ошибки в формате {"error": "сообщение"};
// если тело не парсится — используется сырой текст.
func apiErrorFromResponse(resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)

	var errBody struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errBody); err == nil && errBody.Error != "" {
		message = errBody.Error
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

// --- Auth API ---

// Login выполняет POST /api/v1/auth/login.
// На неверные учётные данные возвращает *APIError с сообщением сервера.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/auth/login", "", LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("запрос login: %w", err)
	}

	var auth AuthResponse
	if err := decodeResponse(resp, &auth); err != nil {
		return nil, err
	}

	return &auth, nil
}

// Logout выполняет POST /api/v1/auth/logout (bearer token).
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil)
	if err != nil {
		return fmt.Errorf("запрос logout: %w", err)
	}

	return checkResponse(resp, http.StatusOK)
}

// UpdateProfile выполняет PUT /api/v1/auth/profile.
// Возвращает обновлённого пользователя.
func (c *Client) UpdateProfile(ctx context.Context, token string, req ProfileUpdateRequest) (*model.User, error) {
	resp, err := c.do(ctx, http.MethodPut, "/auth/profile", token, req)
	if err != nil {
		return nil, fmt.Errorf("запрос обновления профиля: %w", err)
	}

	var profile profileResponse
	if err := decodeResponse(resp, &profile); err != nil {
		return nil, err
	}

	return &profile.User, nil
}

// ChangePassword выполняет PUT /api/v1/auth/change-password.
func (c *Client) ChangePassword(ctx context.Context, token, currentPassword, newPassword string) error {
	resp, err := c.do(ctx, http.MethodPut, "/auth/change-password", token, ChangePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	})
	if err != nil {
		return fmt.Errorf("запрос смены пароля: %w", err)
	}

	return checkResponse(resp, http.StatusOK)
}

// CheckAdminUsers выполняет GET /api/v1/auth/check-admin-users.
// Возвращает true, если в backend существует хотя бы один администратор.
func (c *Client) CheckAdminUsers(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/check-admin-users", "", nil)
	if err != nil {
		return false, fmt.Errorf("запрос check-admin-users: %w", err)
	}

	var check checkAdminUsersResponse
	if err := decodeResponse(resp, &check); err != nil {
		return false, err
	}

	return check.HasAdminUsers, nil
}

// SetupAdmin выполняет POST /api/v1/auth/setup-admin
// (создание первого администратора с авто-логином).
func (c *Client) SetupAdmin(ctx context.Context, req SetupAdminRequest) (*AuthResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/auth/setup-admin", "", req)
	if err != nil {
		return nil, fmt.Errorf("запрос setup-admin: %w", err)
	}

	var auth AuthResponse
	if err := decodeResponse(resp, &auth); err != nil {
		return nil, err
	}

	return &auth, nil
}

// UserPermissions выполняет GET /api/v1/permissions/user-permissions.
// Возвращает карту разрешение → разрешено.
func (c *Client) UserPermissions(ctx context.Context, token string) (map[string]bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/permissions/user-permissions", token, nil)
	if err != nil {
		return nil, fmt.Errorf("запрос разрешений: %w", err)
	}

	var perms map[string]bool
	if err := decodeResponse(resp, &perms); err != nil {
		return nil, err
	}

	return perms, nil
}

// --- Данные для страниц консоли ---

// DashboardStats выполняет GET /api/v1/dashboard/stats.
func (c *Client) DashboardStats(ctx context.Context, token string) (*model.DashboardStats, error) {
	resp, err := c.do(ctx, http.MethodGet, "/dashboard/stats", token, nil)
	if err != nil {
		return nil, fmt.Errorf("запрос статистики dashboard: %w", err)
	}

	var stats model.DashboardStats
	if err := decodeResponse(resp, &stats); err != nil {
		return nil, err
	}

	return &stats, nil
}

// ListHosts выполняет GET /api/v1/hosts с фильтрацией и пагинацией.
// search — поиск по hostname (пустой — все хосты).
func (c *Client) ListHosts(ctx context.Context, token, search string, limit, offset int) ([]model.Host, int, error) {
	path := "/hosts?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	if search != "" {
		path += "&search=" + url.QueryEscape(search)
	}

	resp, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("запрос списка хостов: %w", err)
	}

	var list hostListResponse
	if err := decodeResponse(resp, &list); err != nil {
		return nil, 0, err
	}

	return list.Hosts, list.Total, nil
}

// ListOutdatedPackages выполняет GET /api/v1/packages/outdated.
func (c *Client) ListOutdatedPackages(ctx context.Context, token string, limit, offset int) ([]model.PackageUpdate, int, error) {
	path := "/packages/outdated?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)

	resp, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("запрос списка пакетов: %w", err)
	}

	var list packageListResponse
	if err := decodeResponse(resp, &list); err != nil {
		return nil, 0, err
	}

	return list.Packages, list.Total, nil
}

// ListUsers выполняет GET /api/v1/users (требует admin-разрешений в backend).
func (c *Client) ListUsers(ctx context.Context, token string) ([]model.User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/users", token, nil)
	if err != nil {
		return nil, fmt.Errorf("запрос списка пользователей: %w", err)
	}

	var list userListResponse
	if err := decodeResponse(resp, &list); err != nil {
		return nil, err
	}

	return list.Users, nil
}

// CheckUpdates выполняет GET /api/v1/updates/check —
// сводка доступных обновлений для фонового poller'а.
func (c *Client) CheckUpdates(ctx context.Context, token string) (*model.UpdateSummary, error) {
	resp, err := c.do(ctx, http.MethodGet, "/updates/check", token, nil)
	if err != nil {
		return nil, fmt.Errorf("запрос проверки обновлений: %w", err)
	}

	var summary model.UpdateSummary
	if err := decodeResponse(resp, &summary); err != nil {
		return nil, err
	}

	return &summary, nil
}
