// packages.go — страница пакетов с доступными обновлениями.
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

// PackagesHandler — обработчик страницы пакетов.
type PackagesHandler struct {
	pageBase
	backend  *backend.Client
	renderer *templates.Renderer
	logger   *slog.Logger
}

// NewPackagesHandler создаёт новый PackagesHandler.
func NewPackagesHandler(
	controller *session.Controller,
	poller *updates.Poller,
	settings *service.UISettingsService,
	client *backend.Client,
	renderer *templates.Renderer,
	logger *slog.Logger,
) *PackagesHandler {
	return &PackagesHandler{
		pageBase: pageBase{controller: controller, poller: poller, settings: settings},
		backend:  client,
		renderer: renderer,
		logger:   logger.With(slog.String("component", "ui.packages")),
	}
}

// HandlePackages обрабатывает GET /packages — устаревшие пакеты с пагинацией.
func (h *PackagesHandler) HandlePackages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page := parsePage(r.URL.Query().Get("page"))
	pageSize := h.settings.GetHostsPageSize(ctx)
	offset := (page - 1) * pageSize

	data := templates.PackagesData{
		BaseData: h.baseData(ctx, r, "Packages", "packages"),
		Page:     page,
		PageSize: pageSize,
	}

	packages, total, err := h.backend.ListOutdatedPackages(ctx, h.controller.Token(), pageSize, offset)
	if err != nil {
		h.logger.Warn("Ошибка загрузки списка пакетов", slog.String("error", err.Error()))
		data.ListError = "Failed to load packages from backend"
	} else {
		data.Packages = packages
		data.Total = total
		data.HasPrev = page > 1
		data.HasNext = offset+len(packages) < total
	}

	h.renderer.Render(w, templates.PagePackages, data)
}
