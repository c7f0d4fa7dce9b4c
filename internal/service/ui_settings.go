// ui_settings.go — сервис управления настройками консоли.
// Предоставляет типизированные геттеры для параметров проверки обновлений,
// валидацию ключей и CRUD-операции.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/arturkryukov/patchview/console-module/internal/repository"
)

// Допустимые ключи настроек (dot-notation).
// Используется для валидации при Set.
var validSettingKeys = map[string]string{
	"updates.poll_enabled":  "Включён ли фоновый опрос обновлений (true/false)",
	"updates.poll_interval": "Интервал опроса обновлений (например, 10m)",
	"hosts.page_size":       "Размер страницы списка хостов",
	"hosts.stale_threshold": "Порог, после которого хост считается stale (например, 24h)",
	"ui.theme":              "Тема консоли (light/dark)",
}

// UISettingsService — сервис для работы с настройками консоли.
type UISettingsService struct {
	repo    repository.UISettingsRepository
	auditor repository.SettingsAuditor
	logger  *slog.Logger
}

// NewUISettingsService создаёт сервис настроек консоли.
func NewUISettingsService(
	repo repository.UISettingsRepository,
	auditor repository.SettingsAuditor,
	logger *slog.Logger,
) *UISettingsService {
	return &UISettingsService{
		repo:    repo,
		auditor: auditor,
		logger:  logger.With(slog.String("service", "ui_settings")),
	}
}

// Get возвращает значение настройки по ключу.
// Возвращает ErrNotFound если настройка не существует.
func (s *UISettingsService) Get(ctx context.Context, key string) (*repository.UISetting, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения настройки %q: %w", key, err)
	}
	return setting, nil
}

// Set устанавливает значение настройки. Валидирует ключ и значение.
// updatedBy — имя пользователя, выполняющего изменение.
// Новое значение и запись аудита коммитятся одной транзакцией.
func (s *UISettingsService) Set(ctx context.Context, key, value, updatedBy string) error {
	// Валидация ключа
	if _, ok := validSettingKeys[key]; !ok {
		return fmt.Errorf("%w: недопустимый ключ настройки %q", ErrValidation, key)
	}

	// Валидация значения по типу ключа
	if err := s.validateValue(key, value); err != nil {
		return err
	}

	if err := s.auditor.SetWithAudit(ctx, key, value, updatedBy); err != nil {
		return fmt.Errorf("ошибка сохранения настройки %q: %w", key, err)
	}

	s.logger.Info("Настройка обновлена",
		slog.String("key", key),
		slog.String("updated_by", updatedBy),
	)
	return nil
}

// List возвращает все настройки.
func (s *UISettingsService) List(ctx context.Context) ([]repository.UISetting, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка настроек: %w", err)
	}
	return settings, nil
}

// Delete удаляет настройку по ключу.
func (s *UISettingsService) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления настройки %q: %w", key, err)
	}

	s.logger.Info("Настройка удалена", slog.String("key", key))
	return nil
}

// KnownKeys возвращает допустимые ключи настроек с описаниями.
// Используется страницей настроек для отображения полного набора.
func (s *UISettingsService) KnownKeys() map[string]string {
	keys := make(map[string]string, len(validSettingKeys))
	for k, v := range validSettingKeys {
		keys[k] = v
	}
	return keys
}

// --- Типизированные геттеры --- //

// IsUpdatePollEnabled возвращает true, если фоновый опрос обновлений включён.
// По умолчанию включён.
func (s *UISettingsService) IsUpdatePollEnabled(ctx context.Context) bool {
	setting, err := s.repo.Get(ctx, "updates.poll_enabled")
	if err != nil {
		return true
	}
	return !strings.EqualFold(setting.Value, "false")
}

// GetUpdatePollInterval возвращает интервал опроса обновлений.
// fallback — значение из конфигурации, если настройка не задана или некорректна.
func (s *UISettingsService) GetUpdatePollInterval(ctx context.Context, fallback time.Duration) time.Duration {
	setting, err := s.repo.Get(ctx, "updates.poll_interval")
	if err != nil {
		return fallback
	}
	d, err := time.ParseDuration(setting.Value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetHostsPageSize возвращает размер страницы списка хостов.
// По умолчанию 50.
func (s *UISettingsService) GetHostsPageSize(ctx context.Context) int {
	setting, err := s.repo.Get(ctx, "hosts.page_size")
	if err != nil {
		return 50
	}
	n, err := strconv.Atoi(setting.Value)
	if err != nil || n < 1 || n > 500 {
		return 50
	}
	return n
}

// --- Валидация значений --- //

// validateValue проверяет корректность значения для указанного ключа.
func (s *UISettingsService) validateValue(key, value string) error {
	switch key {
	case "updates.poll_enabled":
		if value != "true" && value != "false" {
			return fmt.Errorf("%w: %s должен быть true или false", ErrValidation, key)
		}
	case "updates.poll_interval", "hosts.stale_threshold":
		if value != "" {
			if _, err := parseDurationExtended(value); err != nil {
				return fmt.Errorf("%w: %s — некорректная длительность: %s", ErrValidation, key, value)
			}
		}
	case "hosts.page_size":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 500 {
			return fmt.Errorf("%w: %s должен быть числом от 1 до 500", ErrValidation, key)
		}
	case "ui.theme":
		if value != "light" && value != "dark" {
			return fmt.Errorf("%w: %s должен быть light или dark", ErrValidation, key)
		}
	}
	return nil
}

// parseDurationExtended расширяет time.ParseDuration, добавляя поддержку суффикса "d" (дни).
func parseDurationExtended(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("некорректное число дней: %s", numStr)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
