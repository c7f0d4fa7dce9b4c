// users.go — страница пользователей backend (требует can_view_users).
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/arturkryukov/patchview/console-module/internal/backend"
	"github.com/arturkryukov/patchview/console-module/internal/service"
	"github.com/arturkryukov/patchview/console-module/internal/session"
	"github.com/arturkryukov/patchview/console-module/internal/ui/templates"
	"github.com/arturkryukov/patchview/console-module/internal/updates"
)

// UsersHandler — обработчик страницы пользователей.
type UsersHandler struct {
	pageBase
	backend  *backend.Client
	renderer *templates.Renderer
	logger   *slog.Logger
}

// NewUsersHandler создаёт новый UsersHandler.
func NewUsersHandler(
	controller *session.Controller,
	poller *updates.Poller,
	settings *service.UISettingsService,
	client *backend.Client,
	renderer *templates.Renderer,
	logger *slog.Logger,
) *UsersHandler {
	return &UsersHandler{
		pageBase: pageBase{controller: controller, poller: poller, settings: settings},
		backend:  client,
		renderer: renderer,
		logger:   logger.With(slog.String("component", "ui.users")),
	}
}

// HandleUsers обрабатывает GET /users.
func (h *UsersHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := templates.UsersData{
		BaseData: h.baseData(ctx, r, "Users", "users"),
	}

	users, err := h.backend.ListUsers(ctx, h.controller.Token())
	if err != nil {
		h.logger.Warn("Ошибка загрузки списка пользователей", slog.String("error", err.Error()))
		data.ListError = "Failed to load users from backend"
	} else {
		data.Users = users
	}

	h.renderer.Render(w, templates.PageUsers, data)
}
