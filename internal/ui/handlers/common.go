// Пакет handlers — HTTP-обработчики страниц консоли.
// common.go — общие данные layout и flash-сообщения через redirect.
package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/arturkryukov/patchview/console-module/internal/service"
	"github.com/arturkryukov/patchview/console-module/internal/session"
	"github.com/arturkryukov/patchview/console-module/internal/ui/templates"
	"github.com/arturkryukov/patchview/console-module/internal/updates"
)

// pageBase собирает общие данные layout для каждого обработчика:
// сессия, навигация по разрешениям, badge обновлений, тема.
type pageBase struct {
	controller *session.Controller
	poller     *updates.Poller
	settings   *service.UISettingsService
}

// baseData строит BaseData страницы.
// Навигационные флаги следуют fail-closed правилу разрешений:
// пока разрешения загружаются, ссылки скрыты.
func (b *pageBase) baseData(ctx context.Context, r *http.Request, title, active string) templates.BaseData {
	data := templates.BaseData{
		Title:   title,
		Active:  active,
		ShowNav: b.controller.IsAuthenticated(),
		Theme:   b.theme(ctx),
		IsAdmin: b.controller.IsAdmin(),

		CanViewHosts:    b.controller.CanViewHosts(),
		CanViewPackages: b.controller.CanViewPackages(),
		CanViewUsers:    b.controller.CanViewUsers(),

		Updates: b.poller.Latest(),
	}

	if user := b.controller.CurrentUser(); user != nil {
		data.Username = user.Username
	}

	data.Flash, data.FlashKind = flashFromQuery(r)

	return data
}

// theme возвращает настроенную тему консоли (по умолчанию light).
func (b *pageBase) theme(ctx context.Context) string {
	setting, err := b.settings.Get(ctx, "ui.theme")
	if err != nil {
		return "light"
	}
	return setting.Value
}

// flashFromQuery извлекает flash-сообщение из query-параметров
// (передаётся через redirect после POST).
func flashFromQuery(r *http.Request) (message, kind string) {
	message = r.URL.Query().Get("flash")
	if message == "" {
		return "", ""
	}
	kind = r.URL.Query().Get("kind")
	if kind != "success" && kind != "error" {
		kind = "success"
	}
	return message, kind
}

// redirectWithFlash выполняет redirect с flash-сообщением в query.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, path, message, kind string) {
	target := path + "?flash=" + url.QueryEscape(message) + "&kind=" + url.QueryEscape(kind)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
