// setup.go — страница first-time setup: создание первого администратора.
// Страница доступна только пока контроллер сообщает NeedsFirstTimeSetup;
// успешное создание выполняет авто-логин и уводит на главную.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/arturkryukov/patchview/console-module/internal/backend"
	"github.com/arturkryukov/patchview/console-module/internal/repository"
	"github.com/arturkryukov/patchview/console-module/internal/service"
	"github.com/arturkryukov/patchview/console-module/internal/session"
	"github.com/arturkryukov/patchview/console-module/internal/ui/templates"
	"github.com/arturkryukov/patchview/console-module/internal/updates"
)

// SetupHandler — обработчик страницы first-time setup.
type SetupHandler struct {
	pageBase
	renderer *templates.Renderer
	audit    repository.AuditLogRepository
	logger   *slog.Logger
}

// NewSetupHandler создаёт новый SetupHandler.
func NewSetupHandler(
	controller *session.Controller,
	poller *updates.Poller,
	settings *service.UISettingsService,
	renderer *templates.Renderer,
	audit repository.AuditLogRepository,
	logger *slog.Logger,
) *SetupHandler {
	return &SetupHandler{
		pageBase: pageBase{controller: controller, poller: poller, settings: settings},
		renderer: renderer,
		audit:    audit,
		logger:   logger.With(slog.String("component", "ui.setup")),
	}
}

// HandleSetupPage обрабатывает GET /setup — форма создания администратора.
func (h *SetupHandler) HandleSetupPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, templates.PageSetup, templates.SetupData{
		BaseData: h.baseData(r.Context(), r, "First-time setup", ""),
	})
}

// HandleSetup обрабатывает POST /setup.
func (h *SetupHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ошибка разбора формы", http.StatusBadRequest)
		return
	}

	req := backend.SetupAdminRequest{
		Username:  r.FormValue("username"),
		Password:  r.FormValue("password"),
		Email:     r.FormValue("email"),
		FirstName: r.FormValue("firstName"),
		LastName:  r.FormValue("lastName"),
	}

	renderError := func(message string) {
		h.renderer.Render(w, templates.PageSetup, templates.SetupData{
			BaseData:  h.baseData(r.Context(), r, "First-time setup", ""),
			Error:     message,
			Username:  req.Username,
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
	}

	if req.Username == "" || req.Password == "" {
		renderError("Username and password are required")
		return
	}
	if req.Password != r.FormValue("confirmPassword") {
		renderError("Passwords do not match")
		return
	}

	result := h.controller.SetupAdmin(r.Context(), req)
	if !result.Success {
		renderError(result.Error)
		return
	}

	if err := h.audit.Insert(r.Context(), req.Username, repository.AuditActionSetupAdmin, ""); err != nil {
		h.logger.Warn("Ошибка записи аудита", slog.String("error", err.Error()))
	}

	h.logger.Info("Создан первый администратор", slog.String("username", req.Username))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
