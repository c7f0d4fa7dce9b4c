// Пакет updates — фоновый опрос сводки доступных обновлений.
//
// Poller запускает горутину с ticker (CM_UPDATE_CHECK_INTERVAL), которая
// запрашивает у backend сводку доступных обновлений для отображения
// в шапке консоли. Каждый тик проверяет гейт сессии: аутентифицированные
// запросы уходят только когда контроллер сессии в фазе READY и сессия
// установлена. До этого момента опрос молча пропускается.
//
// Prometheus-метрики:
//   - console_module_update_check_duration_seconds — длительность проверки
//   - console_module_update_checks_total — количество проверок (по результату)
//   - console_module_outdated_packages — пакетов с доступными обновлениями
//   - console_module_security_updates — из них security
package updates

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/patchview/console-module/internal/backend"
	"github.com/arturkryukov/patchview/console-module/internal/domain/model"
)

// Prometheus-метрики опроса обновлений.
var (
	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "console_module_update_check_duration_seconds",
		Help:    "Длительность проверки обновлений в backend",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 0.05s … ~25s
	})

	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_module_update_checks_total",
		Help: "Количество проверок обновлений",
	}, []string{"result"}) // result: ok, error, skipped

	outdatedPackages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_module_outdated_packages",
		Help: "Пакетов с доступными обновлениями по последней проверке",
	})

	securityUpdates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_module_security_updates",
		Help: "Security-обновлений по последней проверке",
	})
)

// AuthGate — гейт сессии: опрос выполняется только когда сессия готова.
// Реализуется session.Controller.
type AuthGate interface {
	IsAuthReady() bool
	Token() string
}

// Settings — настройки опроса обновлений.
// Реализуется service.UISettingsService.
type Settings interface {
	IsUpdatePollEnabled(ctx context.Context) bool
}

// Poller — фоновый опрос сводки обновлений.
type Poller struct {
	backend  *backend.Client
	gate     AuthGate
	settings Settings
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	latest *model.UpdateSummary

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller создаёт poller сводки обновлений.
func NewPoller(
	client *backend.Client,
	gate AuthGate,
	settings Settings,
	interval time.Duration,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		backend:  client,
		gate:     gate,
		settings: settings,
		interval: interval,
		logger:   logger.With(slog.String("component", "update_poller")),
	}
}

// Start запускает фоновую горутину с периодическим опросом.
// Вызывается один раз при старте приложения.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)

		p.logger.Info("Периодический опрос обновлений запущен",
			slog.String("interval", p.interval.String()),
		)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("Периодический опрос обновлений остановлен")
				return
			case <-ticker.C:
				p.checkOnce(ctx)
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
}

// Latest возвращает сводку последней успешной проверки
// (nil — успешных проверок ещё не было).
func (p *Poller) Latest() *model.UpdateSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.latest == nil {
		return nil
	}
	s := *p.latest
	return &s
}

// CheckNow выполняет немедленную проверку вне расписания
// (кнопка «обновить» в шапке консоли). Возвращает свежую сводку.
func (p *Poller) CheckNow(ctx context.Context) (*model.UpdateSummary, bool) {
	return p.checkOnce(ctx)
}

// checkOnce выполняет одну проверку обновлений с учётом гейта сессии
// и настроек. Возвращает сводку и признак успеха.
func (p *Poller) checkOnce(ctx context.Context) (*model.UpdateSummary, bool) {
	// Гейт: до установления сессии аутентифицированные запросы не уходят.
	if !p.gate.IsAuthReady() {
		checksTotal.WithLabelValues("skipped").Inc()
		p.logger.Debug("Опрос обновлений пропущен: сессия не готова")
		return nil, false
	}
	if !p.settings.IsUpdatePollEnabled(ctx) {
		checksTotal.WithLabelValues("skipped").Inc()
		p.logger.Debug("Опрос обновлений пропущен: отключён в настройках")
		return nil, false
	}

	started := time.Now()
	summary, err := p.backend.CheckUpdates(ctx, p.gate.Token())
	checkDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		checksTotal.WithLabelValues("error").Inc()
		p.logger.Warn("Проверка обновлений не удалась", slog.String("error", err.Error()))
		return nil, false
	}

	p.mu.Lock()
	p.latest = summary
	p.mu.Unlock()

	checksTotal.WithLabelValues("ok").Inc()
	outdatedPackages.Set(float64(summary.OutdatedPackages))
	securityUpdates.Set(float64(summary.SecurityUpdates))

	p.logger.Info("Проверка обновлений завершена",
		slog.Int("outdated_packages", summary.OutdatedPackages),
		slog.Int("security_updates", summary.SecurityUpdates),
		slog.Int("hosts_affected", summary.HostsAffected),
	)

	return summary, true
}
