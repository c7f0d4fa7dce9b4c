// Точка входа Console Module — операторская консоль системы Patchview.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// восстанавливает сессию оператора через контроллер, запускает фоновые
// задачи (опрос обновлений, topologymetrics), HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	apihandlers "github.com/arturkryukov/patchview/console-module/internal/api/handlers"
	"github.com/arturkryukov/patchview/console-module/internal/backend"
	"github.com/arturkryukov/patchview/console-module/internal/config"
	"github.com/arturkryukov/patchview/console-module/internal/database"
	"github.com/arturkryukov/patchview/console-module/internal/repository"
	"github.com/arturkryukov/patchview/console-module/internal/server"
	"github.com/arturkryukov/patchview/console-module/internal/service"
	"github.com/arturkryukov/patchview/console-module/internal/session"
	uihandlers "github.com/arturkryukov/patchview/console-module/internal/ui/handlers"
	uimiddleware "github.com/arturkryukov/patchview/console-module/internal/ui/middleware"
	"github.com/arturkryukov/patchview/console-module/internal/ui/templates"
	"github.com/arturkryukov/patchview/console-module/internal/updates"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Console Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("CM_DEPHEALTH_GROUP") == "" {
		logger.Warn("CM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. HTTP-клиент к backend (с кастомным CA при необходимости)
	httpClient := &http.Client{Timeout: cfg.BackendTimeout}
	if cfg.BackendCACertPath != "" {
		httpClient, err = buildHTTPClientWithCA(cfg.BackendCACertPath, cfg.BackendTimeout)
		if err != nil {
			logger.Error("Ошибка загрузки CA-сертификата",
				slog.String("path", cfg.BackendCACertPath),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.BackendCACertPath))
	}

	backendClient := backend.New(cfg.BackendURL, httpClient, logger)
	logger.Info("Backend клиент создан", slog.String("url", cfg.BackendURL))

	// 6. Repositories
	stateRepo := repository.NewConsoleStateRepository(pool)
	settingsRepo := repository.NewUISettingsRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)

	// 7. Контроллер сессии: шифрование состояния + восстановление сессии
	cipher, err := session.NewCipher(cfg.SessionSecret)
	if err != nil {
		logger.Error("Ошибка инициализации шифрования сессии", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("CM_SESSION_SECRET не задан, сессия не переживёт рестарт")
	}

	controller := session.NewController(backendClient, stateRepo, cipher, logger)
	controller.Initialize(ctx)
	logger.Info("Контроллер сессии инициализирован",
		slog.String("phase", controller.Phase().String()),
		slog.Bool("is_authenticated", controller.IsAuthenticated()),
		slog.Bool("needs_first_time_setup", controller.NeedsFirstTimeSetup()),
	)

	// 8. Services
	settingsSvc := service.NewUISettingsService(settingsRepo, repository.NewSettingsAuditor(pool), logger)

	// 9. Фоновый опрос обновлений
	pollInterval := settingsSvc.GetUpdatePollInterval(ctx, cfg.UpdateCheckInterval)
	poller := updates.NewPoller(backendClient, controller, settingsSvc, pollInterval, logger)
	poller.Start(ctx)

	// 9.1 topologymetrics — мониторинг зависимостей (PostgreSQL + backend)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"console-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.BackendURL,
		cfg.BackendHealthPath,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
			dephealthSvc = nil
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. Readiness checkers (PostgreSQL + backend)
	pgChecker := database.NewReadinessChecker(pool)
	backendChecker := backend.NewReadinessChecker(cfg.BackendURL, cfg.BackendHealthPath, httpClient)
	healthHandler := apihandlers.NewHealthHandler(pgChecker, backendChecker)

	// 11. JSON API консоли
	consoleHandler := apihandlers.NewConsoleHandler(controller, poller, settingsSvc, auditRepo, logger)

	// 12. Страницы консоли
	renderer, err := templates.New(logger)
	if err != nil {
		logger.Error("Ошибка парсинга шаблонов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	guard := uimiddleware.NewGuard(controller, logger)

	handlers := &server.Handlers{
		Health:  healthHandler,
		Console: consoleHandler,

		Guard:     guard,
		Auth:      uihandlers.NewAuthHandler(controller, poller, settingsSvc, renderer, auditRepo, logger),
		Setup:     uihandlers.NewSetupHandler(controller, poller, settingsSvc, renderer, auditRepo, logger),
		Dashboard: uihandlers.NewDashboardHandler(controller, poller, settingsSvc, backendClient, renderer, logger),
		Hosts:     uihandlers.NewHostsHandler(controller, poller, settingsSvc, backendClient, renderer, logger),
		Packages:  uihandlers.NewPackagesHandler(controller, poller, settingsSvc, backendClient, renderer, logger),
		Users:     uihandlers.NewUsersHandler(controller, poller, settingsSvc, backendClient, renderer, logger),
		Profile:   uihandlers.NewProfileHandler(controller, poller, settingsSvc, renderer, auditRepo, logger),
		Settings:  uihandlers.NewSettingsHandler(controller, poller, settingsSvc, renderer, auditRepo, logger),
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, handlers)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	poller.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	controller.WaitBackgroundFetches()

	logger.Info("Console Module остановлен")
}

// buildHTTPClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func buildHTTPClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}
