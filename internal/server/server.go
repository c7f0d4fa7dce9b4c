// Пакет server — HTTP-сервер Console Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	apihandlers "github.com/arturkryukov/patchview/console-module/internal/api/handlers"
	apimiddleware "github.com/arturkryukov/patchview/console-module/internal/api/middleware"
	"github.com/arturkryukov/patchview/console-module/internal/config"
	"github.com/arturkryukov/patchview/console-module/internal/domain/rbac"
	uihandlers "github.com/arturkryukov/patchview/console-module/internal/ui/handlers"
	uimiddleware "github.com/arturkryukov/patchview/console-module/internal/ui/middleware"
	"github.com/arturkryukov/patchview/console-module/internal/ui/static"
)

// Handlers — обработчики, монтируемые сервером.
type Handlers struct {
	Health  *apihandlers.HealthHandler
	Console *apihandlers.ConsoleHandler

	Guard     *uimiddleware.Guard
	Auth      *uihandlers.AuthHandler
	Setup     *uihandlers.SetupHandler
	Dashboard *uihandlers.DashboardHandler
	Hosts     *uihandlers.HostsHandler
	Packages  *uihandlers.PackagesHandler
	Users     *uihandlers.UsersHandler
	Profile   *uihandlers.ProfileHandler
	Settings  *uihandlers.SettingsHandler
}

// Server — HTTP-сервер Console Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h *Handlers) *Server {
	router := chi.NewRouter()

	// Health и metrics — без метрик и логирования запросов.
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	// Остальные маршруты — с метриками и логированием.
	router.Group(func(r chi.Router) {
		r.Use(apimiddleware.MetricsMiddleware())
		r.Use(apimiddleware.RequestLogger(logger))

		r.Handle("/static/*", static.Handler())

		// Страницы входа и setup доступны только вне сессии.
		r.Group(func(r chi.Router) {
			r.Use(h.Guard.RequireAnonymous)
			r.Get("/login", h.Auth.HandleLoginPage)
			r.Post("/login", h.Auth.HandleLogin)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.Guard.RequireSetup)
			r.Get("/setup", h.Setup.HandleSetupPage)
			r.Post("/setup", h.Setup.HandleSetup)
		})
		r.Post("/logout", h.Auth.HandleLogout)

		// Защищённые страницы консоли.
		r.Group(func(r chi.Router) {
			r.Use(h.Guard.RequireSession)

			r.Get("/", h.Dashboard.HandleDashboard)
			r.Get("/profile", h.Profile.HandleProfilePage)
			r.Post("/profile", h.Profile.HandleProfileUpdate)
			r.Post("/profile/password", h.Profile.HandlePasswordChange)

			r.With(h.Guard.RequirePermission(rbac.PermViewHosts)).
				Get("/hosts", h.Hosts.HandleHosts)
			r.With(h.Guard.RequirePermission(rbac.PermViewPackages)).
				Get("/packages", h.Packages.HandlePackages)
			r.With(h.Guard.RequirePermission(rbac.PermViewUsers)).
				Get("/users", h.Users.HandleUsers)

			r.Group(func(r chi.Router) {
				r.Use(h.Guard.RequireAdmin)
				r.Get("/settings", h.Settings.HandleSettingsPage)
				r.Post("/settings", h.Settings.HandleSettingUpdate)
			})
		})

		// JSON API консоли (для скриптов и отладки).
		r.Route("/api/v1/console", func(r chi.Router) {
			r.Get("/session", h.Console.GetSession)
			r.Get("/updates", h.Console.GetUpdates)
			r.Post("/updates/check", h.Console.CheckUpdates)
			r.Get("/settings", h.Console.ListSettings)
			r.Put("/settings/{key}", h.Console.SetSetting)
			r.Get("/audit", h.Console.ListAudit)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
