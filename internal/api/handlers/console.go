// console.go — JSON API консоли: состояние сессии, сводка обновлений,
// настройки и аудит. Используется страницами консоли для live-обновлений
// без перезагрузки.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/patchview/console-module/internal/api/errors"
	"github.com/arturkryukov/patchview/console-module/internal/domain/model"
	"github.com/arturkryukov/patchview/console-module/internal/repository"
	"github.com/arturkryukov/patchview/console-module/internal/service"
	"github.com/arturkryukov/patchview/console-module/internal/session"
	"github.com/arturkryukov/patchview/console-module/internal/updates"
)

// ConsoleHandler — обработчик JSON API консоли.
type ConsoleHandler struct {
	controller *session.Controller
	poller     *updates.Poller
	settings   *service.UISettingsService
	audit      repository.AuditLogRepository
	logger     *slog.Logger
}

// NewConsoleHandler создаёт обработчик JSON API консоли.
func NewConsoleHandler(
	controller *session.Controller,
	poller *updates.Poller,
	settings *service.UISettingsService,
	audit repository.AuditLogRepository,
	logger *slog.Logger,
) *ConsoleHandler {
	return &ConsoleHandler{
		controller: controller,
		poller:     poller,
		settings:   settings,
		audit:      audit,
		logger:     logger.With(slog.String("component", "console_api")),
	}
}

// sessionResponse — ответ GET /api/v1/console/session.
type sessionResponse struct {
	Phase               string          `json:"phase"`
	IsAuthenticated     bool            `json:"is_authenticated"`
	NeedsFirstTimeSetup bool            `json:"needs_first_time_setup"`
	PermissionsLoading  bool            `json:"permissions_loading"`
	User                *model.User     `json:"user,omitempty"`
	Permissions         map[string]bool `json:"permissions,omitempty"`
}

// GetSession — GET /api/v1/console/session.
// Текущее состояние контроллера сессии.
func (h *ConsoleHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{
		Phase:               h.controller.Phase().String(),
		IsAuthenticated:     h.controller.IsAuthenticated(),
		NeedsFirstTimeSetup: h.controller.NeedsFirstTimeSetup(),
		PermissionsLoading:  h.controller.PermissionsLoading(),
	}
	if resp.IsAuthenticated {
		resp.User = h.controller.CurrentUser()
		resp.Permissions = h.controller.Permissions()
	}

	writeJSON(w, http.StatusOK, resp)
}

// updatesResponse — ответ GET /api/v1/console/updates.
type updatesResponse struct {
	Summary *model.UpdateSummary `json:"summary"`
}

// GetUpdates — GET /api/v1/console/updates.
// Сводка последней успешной проверки обновлений (summary=null,
// если успешных проверок ещё не было).
func (h *ConsoleHandler) GetUpdates(w http.ResponseWriter, r *http.Request) {
	if !h.controller.IsAuthReady() {
		apierrors.Unauthorized(w, "сессия не установлена")
		return
	}

	writeJSON(w, http.StatusOK, updatesResponse{Summary: h.poller.Latest()})
}

// CheckUpdates — POST /api/v1/console/updates/check.
// Немедленная проверка обновлений вне расписания.
func (h *ConsoleHandler) CheckUpdates(w http.ResponseWriter, r *http.Request) {
	if !h.controller.IsAuthReady() {
		apierrors.Unauthorized(w, "сессия не установлена")
		return
	}

	summary, ok := h.poller.CheckNow(r.Context())
	if !ok {
		apierrors.BackendUnavailable(w, "проверка обновлений не удалась")
		return
	}

	writeJSON(w, http.StatusOK, updatesResponse{Summary: summary})
}

// settingResponse — элемент ответа settings endpoints.
type settingResponse struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedBy string `json:"updated_by"`
}

// ListSettings — GET /api/v1/console/settings.
func (h *ConsoleHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireSettingsAccess(w) {
		return
	}

	settings, err := h.settings.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения настроек", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить настройки")
		return
	}

	out := make([]settingResponse, 0, len(settings))
	for _, s := range settings {
		out = append(out, settingResponse{Key: s.Key, Value: s.Value, UpdatedBy: s.UpdatedBy})
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": out})
}

// setSettingRequest — тело запроса PUT /api/v1/console/settings/{key}.
type setSettingRequest struct {
	Value string `json:"value"`
}

// SetSetting — PUT /api/v1/console/settings/{key}.
func (h *ConsoleHandler) SetSetting(w http.ResponseWriter, r *http.Request) {
	if !h.requireSettingsAccess(w) {
		return
	}

	key := chi.URLParam(r, "key")

	var req setSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}

	username := ""
	if u := h.controller.CurrentUser(); u != nil {
		username = u.Username
	}

	if err := h.settings.Set(r.Context(), key, req.Value, username); err != nil {
		if errors.Is(err, service.ErrValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка сохранения настройки",
			slog.String("key", key),
			slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось сохранить настройку")
		return
	}

	writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: req.Value, UpdatedBy: username})
}

// auditEntryResponse — элемент ответа GET /api/v1/console/audit.
type auditEntryResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}

// ListAudit — GET /api/v1/console/audit. Только для администраторов.
func (h *ConsoleHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if !h.controller.IsAuthReady() {
		apierrors.Unauthorized(w, "сессия не установлена")
		return
	}
	if !h.controller.IsAdmin() {
		apierrors.Forbidden(w, "требуются права администратора")
		return
	}

	entries, err := h.audit.ListRecent(r.Context(), 100)
	if err != nil {
		h.logger.Error("Ошибка получения аудита", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось получить аудит")
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:        e.ID.String(),
			Username:  e.Username,
			Action:    e.Action,
			Details:   e.Details,
			CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// requireSettingsAccess проверяет сессию и разрешение на управление настройками.
func (h *ConsoleHandler) requireSettingsAccess(w http.ResponseWriter) bool {
	if !h.controller.IsAuthReady() {
		apierrors.Unauthorized(w, "сессия не установлена")
		return false
	}
	if !h.controller.CanManageSettings() && !h.controller.IsAdmin() {
		apierrors.Forbidden(w, "недостаточно прав для управления настройками")
		return false
	}
	return true
}

// writeJSON сериализует ответ в JSON.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
