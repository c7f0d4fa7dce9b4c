// auth.go — страницы входа и выхода.
// Login идёт через контроллер сессии: ожидаемые отказы (неверные учётные
// данные, недоступный backend) возвращаются структурированным результатом
// и показываются на форме, а не превращаются в 5xx.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/arturkryukov/patchview/console-module/internal/repository"
	"github.com/arturkryukov/patchview/console-module/internal/service"
	"github.com/arturkryukov/patchview/console-module/internal/session"
	"github.com/arturkryukov/patchview/console-module/internal/ui/templates"
	"github.com/arturkryukov/patchview/console-module/internal/updates"
)

// AuthHandler — обработчики страниц входа и выхода.
type AuthHandler struct {
	pageBase
	renderer *templates.Renderer
	audit    repository.AuditLogRepository
	logger   *slog.Logger
}

// NewAuthHandler создаёт новый AuthHandler.
func NewAuthHandler(
	controller *session.Controller,
	poller *updates.Poller,
	settings *service.UISettingsService,
	renderer *templates.Renderer,
	audit repository.AuditLogRepository,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		pageBase: pageBase{controller: controller, poller: poller, settings: settings},
		renderer: renderer,
		audit:    audit,
		logger:   logger.With(slog.String("component", "ui.auth")),
	}
}

// HandleLoginPage обрабатывает GET /login — форма входа.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, templates.PageLogin, templates.LoginData{
		BaseData: h.baseData(r.Context(), r, "Sign in", ""),
	})
}

// HandleLogin обрабатывает POST /login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ошибка разбора формы", http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	result := h.controller.Login(r.Context(), username, password)
	if !result.Success {
		h.renderer.Render(w, templates.PageLogin, templates.LoginData{
			BaseData: h.baseData(r.Context(), r, "Sign in", ""),
			Error:    result.Error,
			Username: username,
		})
		return
	}

	h.recordAudit(r, username, repository.AuditActionLogin, "")

	h.logger.Info("Пользователь вошёл в консоль", slog.String("username", username))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout обрабатывает POST /logout.
// Сессия очищается всегда, даже если backend недоступен.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	username := ""
	if user := h.controller.CurrentUser(); user != nil {
		username = user.Username
	}

	h.controller.Logout(r.Context())

	if username != "" {
		h.recordAudit(r, username, repository.AuditActionLogout, "")
	}

	h.logger.Info("Пользователь вышел из консоли", slog.String("username", username))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// recordAudit записывает действие в аудит (best-effort).
func (h *AuthHandler) recordAudit(r *http.Request, username, action, details string) {
	if err := h.audit.Insert(r.Context(), username, action, details); err != nil {
		h.logger.Warn("Ошибка записи аудита",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}
