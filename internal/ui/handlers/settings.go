// settings.go — страница настроек консоли (admin only):
// настройки ui_settings и журнал последних действий.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/arturkryukov/patchview/console-module/internal/domain/rbac"
	"github.com/arturkryukov/patchview/console-module/internal/repository"
	"github.com/arturkryukov/patchview/console-module/internal/service"
	"github.com/arturkryukov/patchview/console-module/internal/session"
	"github.com/arturkryukov/patchview/console-module/internal/ui/templates"
	"github.com/arturkryukov/patchview/console-module/internal/updates"
)

// auditPageSize — сколько последних записей аудита показывать на странице.
const auditPageSize = 50

// SettingsHandler — обработчик страницы настроек.
type SettingsHandler struct {
	pageBase
	renderer *templates.Renderer
	audit    repository.AuditLogRepository
	logger   *slog.Logger
}

// NewSettingsHandler создаёт новый SettingsHandler.
func NewSettingsHandler(
	controller *session.Controller,
	poller *updates.Poller,
	settings *service.UISettingsService,
	renderer *templates.Renderer,
	audit repository.AuditLogRepository,
	logger *slog.Logger,
) *SettingsHandler {
	return &SettingsHandler{
		pageBase: pageBase{controller: controller, poller: poller, settings: settings},
		renderer: renderer,
		audit:    audit,
		logger:   logger.With(slog.String("component", "ui.settings")),
	}
}

// HandleSettingsPage обрабатывает GET /settings.
func (h *SettingsHandler) HandleSettingsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := templates.SettingsData{
		BaseData:  h.baseData(ctx, r, "Settings", "settings"),
		KnownKeys: h.settings.KnownKeys(),
	}

	for _, name := range rbac.KnownPermissions {
		data.Permissions = append(data.Permissions, templates.PermissionStatus{
			Name:    name,
			Granted: h.controller.HasPermission(name),
		})
	}

	list, err := h.settings.List(ctx)
	if err != nil {
		h.logger.Error("Ошибка загрузки настроек", slog.String("error", err.Error()))
	} else {
		data.Settings = list
	}

	audit, err := h.audit.ListRecent(ctx, auditPageSize)
	if err != nil {
		h.logger.Error("Ошибка загрузки аудита", slog.String("error", err.Error()))
	} else {
		data.Audit = audit
	}

	h.renderer.Render(w, templates.PageSettings, data)
}

// HandleSettingUpdate обрабатывает POST /settings — сохранение настройки.
func (h *SettingsHandler) HandleSettingUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ошибка разбора формы", http.StatusBadRequest)
		return
	}

	key := r.FormValue("key")
	value := r.FormValue("value")

	username := ""
	if user := h.controller.CurrentUser(); user != nil {
		username = user.Username
	}

	if err := h.settings.Set(r.Context(), key, value, username); err != nil {
		if errors.Is(err, service.ErrValidation) {
			redirectWithFlash(w, r, "/settings", "Invalid setting: "+err.Error(), "error")
			return
		}
		h.logger.Error("Ошибка сохранения настройки",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, "/settings", "Failed to save setting", "error")
		return
	}

	h.logger.Info("Настройка консоли обновлена",
		slog.String("key", key),
		slog.String("updated_by", username),
	)
	redirectWithFlash(w, r, "/settings", "Setting saved", "success")
}
