// dashboard.go — главная страница консоли: сводная статистика backend.
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

// DashboardHandler — обработчик главной страницы.
type DashboardHandler struct {
	pageBase
	backend  *backend.Client
	renderer *templates.Renderer
	logger   *slog.Logger
}

// NewDashboardHandler создаёт новый DashboardHandler.
func NewDashboardHandler(
	controller *session.Controller,
	poller *updates.Poller,
	settings *service.UISettingsService,
	client *backend.Client,
	renderer *templates.Renderer,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		pageBase: pageBase{controller: controller, poller: poller, settings: settings},
		backend:  client,
		renderer: renderer,
		logger:   logger.With(slog.String("component", "ui.dashboard")),
	}
}

// HandleDashboard обрабатывает GET / — сводная статистика.
// Ошибка backend не валит страницу: показывается сообщение вместо цифр.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := templates.DashboardData{
		BaseData: h.baseData(ctx, r, "Dashboard", "dashboard"),
	}

	stats, err := h.backend.DashboardStats(ctx, h.controller.Token())
	if err != nil {
		h.logger.Warn("Ошибка загрузки статистики dashboard", slog.String("error", err.Error()))
		data.StatsError = "Failed to load statistics from backend"
	} else {
		data.Stats = stats
	}

	h.renderer.Render(w, templates.PageDashboard, data)
}
