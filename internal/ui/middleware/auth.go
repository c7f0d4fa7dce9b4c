// Пакет middleware — HTTP middleware страниц консоли.
// auth.go — гейтинг страниц на состоянии контроллера сессии:
// до фазы READY страницы недоступны, при требуемом first-time setup
// все страницы ведут на /setup, без сессии — на /login.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/arturkryukov/patchview/console-module/internal/session"
)

// Guard — middleware гейтинга страниц консоли.
type Guard struct {
	controller *session.Controller
	logger     *slog.Logger
}

// NewGuard создаёт middleware гейтинга.
func NewGuard(controller *session.Controller, logger *slog.Logger) *Guard {
	return &Guard{
		controller: controller,
		logger:     logger.With(slog.String("component", "ui_guard")),
	}
}

// RequireSession — гейт для защищённых страниц.
// Порядок проверок соответствует жизненному циклу сессии:
//  1. Фаза не READY — инициализация ещё идёт, 503 с Retry-After.
//  2. Требуется first-time setup — redirect на /setup.
//  3. Сессии нет — redirect на /login.
func (g *Guard) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.controller.Phase() != session.PhaseReady {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Консоль инициализируется, повторите запрос", http.StatusServiceUnavailable)
			return
		}

		if g.controller.NeedsFirstTimeSetup() {
			http.Redirect(w, r, "/setup", http.StatusFound)
			return
		}

		if !g.controller.IsAuthenticated() {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAnonymous — гейт для /login и /setup: аутентифицированного
// пользователя уводит на главную.
func (g *Guard) RequireAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.controller.Phase() != session.PhaseReady {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Консоль инициализируется, повторите запрос", http.StatusServiceUnavailable)
			return
		}

		if g.controller.IsAuthenticated() {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireSetup — гейт для /setup: если setup не требуется,
// страница недоступна (redirect на /login).
func (g *Guard) RequireSetup(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.controller.NeedsFirstTimeSetup() {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequirePermission — гейт страницы по именованному разрешению.
// Пока разрешения загружаются — отказ (fail-closed).
func (g *Guard) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.controller.HasPermission(permission) {
				g.logger.Debug("Отказ в доступе к странице",
					slog.String("path", r.URL.Path),
					slog.String("permission", permission),
				)
				http.Error(w, "Недостаточно прав", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin — гейт страницы по административной роли.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.controller.IsAdmin() {
			http.Error(w, "Недостаточно прав", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
