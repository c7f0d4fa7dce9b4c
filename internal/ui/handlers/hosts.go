// hosts.go — страница списка хостов: поиск по hostname и пагинация.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/arturkryukov/patchview/console-module/internal/backend"
	"github.com/arturkryukov/patchview/console-module/internal/service"
	"github.com/arturkryukov/patchview/console-module/internal/session"
	"github.com/arturkryukov/patchview/console-module/internal/ui/templates"
	"github.com/arturkryukov/patchview/console-module/internal/updates"
)

// HostsHandler — обработчик страницы хостов.
type HostsHandler struct {
	pageBase
	backend  *backend.Client
	renderer *templates.Renderer
	logger   *slog.Logger
}

// NewHostsHandler создаёт новый HostsHandler.
func NewHostsHandler(
	controller *session.Controller,
	poller *updates.Poller,
	settings *service.UISettingsService,
	client *backend.Client,
	renderer *templates.Renderer,
	logger *slog.Logger,
) *HostsHandler {
	return &HostsHandler{
		pageBase: pageBase{controller: controller, poller: poller, settings: settings},
		backend:  client,
		renderer: renderer,
		logger:   logger.With(slog.String("component", "ui.hosts")),
	}
}

// HandleHosts обрабатывает GET /hosts.
// Query-параметры: search — фильтр по hostname, page — номер страницы (с 1).
// Размер страницы берётся из настройки hosts.page_size.
func (h *HostsHandler) HandleHosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	search := r.URL.Query().Get("search")
	page := parsePage(r.URL.Query().Get("page"))
	pageSize := h.settings.GetHostsPageSize(ctx)
	offset := (page - 1) * pageSize

	data := templates.HostsData{
		BaseData: h.baseData(ctx, r, "Hosts", "hosts"),
		Search:   search,
		Page:     page,
		PageSize: pageSize,
	}

	hosts, total, err := h.backend.ListHosts(ctx, h.controller.Token(), search, pageSize, offset)
	if err != nil {
		h.logger.Warn("Ошибка загрузки списка хостов", slog.String("error", err.Error()))
		data.ListError = "Failed to load hosts from backend"
	} else {
		data.Hosts = hosts
		data.Total = total
		data.HasPrev = page > 1
		data.HasNext = offset+len(hosts) < total
	}

	h.renderer.Render(w, templates.PageHosts, data)
}

// parsePage разбирает номер страницы из query (минимум 1).
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}
