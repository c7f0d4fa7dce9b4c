// logging.go — структурированное логирование HTTP-запросов.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestLogger возвращает middleware логирования запросов.
// Health и metrics не логируются: их опрашивают Kubernetes и Prometheus.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	requestLogger := logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health/live", "/health/ready", "/metrics":
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			requestLogger.Debug("HTTP запрос",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
