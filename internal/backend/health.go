// health.go — проверка готовности Patchview backend для readiness probe.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ReadinessChecker — проверка доступности Patchview backend.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	url        string
	httpClient *http.Client
}

// NewReadinessChecker создаёт проверку доступности backend.
// baseURL — базовый URL backend, healthPath — path health endpoint'а.
func NewReadinessChecker(baseURL, healthPath string, httpClient *http.Client) *ReadinessChecker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if healthPath == "" {
		healthPath = "/health"
	}

	return &ReadinessChecker{
		url:        strings.TrimRight(baseURL, "/") + healthPath,
		httpClient: httpClient,
	}
}

// CheckReady выполняет GET health endpoint'а backend.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "fail", fmt.Sprintf("некорректный URL backend: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("backend недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "fail", fmt.Sprintf("backend вернул статус %d", resp.StatusCode)
	}
	return "ok", "backend доступен"
}
