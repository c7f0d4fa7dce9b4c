// profile.go — страница профиля: реквизиты пользователя и смена пароля.
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

// ProfileHandler — обработчик страницы профиля.
type ProfileHandler struct {
	pageBase
	renderer *templates.Renderer
	audit    repository.AuditLogRepository
	logger   *slog.Logger
}

// NewProfileHandler создаёт новый ProfileHandler.
func NewProfileHandler(
	controller *session.Controller,
	poller *updates.Poller,
	settings *service.UISettingsService,
	renderer *templates.Renderer,
	audit repository.AuditLogRepository,
	logger *slog.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		pageBase: pageBase{controller: controller, poller: poller, settings: settings},
		renderer: renderer,
		audit:    audit,
		logger:   logger.With(slog.String("component", "ui.profile")),
	}
}

// HandleProfilePage обрабатывает GET /profile.
func (h *ProfileHandler) HandleProfilePage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, templates.PageProfile, templates.ProfileData{
		BaseData: h.baseData(r.Context(), r, "Profile", "profile"),
		User:     h.controller.CurrentUser(),
	})
}

// HandleProfileUpdate обрабатывает POST /profile — обновление реквизитов.
func (h *ProfileHandler) HandleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ошибка разбора формы", http.StatusBadRequest)
		return
	}

	result := h.controller.UpdateProfile(r.Context(), backend.ProfileUpdateRequest{
		FirstName: r.FormValue("firstName"),
		LastName:  r.FormValue("lastName"),
		Email:     r.FormValue("email"),
	})
	if !result.Success {
		redirectWithFlash(w, r, "/profile", result.Error, "error")
		return
	}

	h.recordAudit(r, repository.AuditActionProfileUpdate)
	redirectWithFlash(w, r, "/profile", "Profile updated", "success")
}

// HandlePasswordChange обрабатывает POST /profile/password.
func (h *ProfileHandler) HandlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ошибка разбора формы", http.StatusBadRequest)
		return
	}

	newPassword := r.FormValue("newPassword")
	if newPassword != r.FormValue("confirmPassword") {
		redirectWithFlash(w, r, "/profile", "Passwords do not match", "error")
		return
	}

	result := h.controller.ChangePassword(r.Context(), r.FormValue("currentPassword"), newPassword)
	if !result.Success {
		redirectWithFlash(w, r, "/profile", result.Error, "error")
		return
	}

	h.recordAudit(r, repository.AuditActionPasswordChange)
	redirectWithFlash(w, r, "/profile", "Password changed", "success")
}

// recordAudit записывает действие текущего пользователя в аудит (best-effort).
func (h *ProfileHandler) recordAudit(r *http.Request, action string) {
	username := ""
	if user := h.controller.CurrentUser(); user != nil {
		username = user.Username
	}

	if err := h.audit.Insert(r.Context(), username, action, ""); err != nil {
		h.logger.Warn("Ошибка записи аудита",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}
