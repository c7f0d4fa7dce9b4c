package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/patchview/console-module/internal/session"
)

// ConsoleState — модель записи из таблицы console_state.
// Значения auth-ключей хранятся зашифрованными (AES-256-GCM),
// шифрованием занимается session.Controller, не репозиторий.
type ConsoleState struct {
	// Ключ состояния (token, user, permissions).
	Key string
	// Значение (зашифрованное, base64).
	Value string
	// Время последнего обновления.
	UpdatedAt time.Time
}

// ConsoleStateRepository — key-value хранилище состояния консоли.
// Реализует session.Storage.
type ConsoleStateRepository interface {
	session.Storage
	// List возвращает все ключи состояния (для диагностики).
	List(ctx context.Context) ([]ConsoleState, error)
}

// consoleStateRepo — реализация ConsoleStateRepository.
type consoleStateRepo struct {
	db DBTX
}

// NewConsoleStateRepository создаёт репозиторий состояния консоли.
func NewConsoleStateRepository(db DBTX) ConsoleStateRepository {
	return &consoleStateRepo{db: db}
}

// Get возвращает значение ключа. Отсутствующий ключ — session.ErrKeyNotFound.
func (r *consoleStateRepo) Get(ctx context.Context, key string) (string, error) {
	query := `
		SELECT value
		FROM console_state
		WHERE key = $1`

	var value string
	err := r.db.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", session.ErrKeyNotFound
		}
		return "", fmt.Errorf("ошибка получения console_state[%s]: %w", key, err)
	}
	return value, nil
}

// Set создаёт или обновляет значение ключа (INSERT ... ON CONFLICT DO UPDATE).
func (r *consoleStateRepo) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO console_state (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query, key, value)
	if err != nil {
		return fmt.Errorf("ошибка сохранения console_state[%s]: %w", key, err)
	}
	return nil
}

// Delete удаляет ключ. Отсутствие ключа не является ошибкой:
// очистка состояния должна быть идемпотентной.
func (r *consoleStateRepo) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM console_state WHERE key = $1`
	if _, err := r.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("ошибка удаления console_state[%s]: %w", key, err)
	}
	return nil
}

// List возвращает все записи состояния, отсортированные по ключу.
func (r *consoleStateRepo) List(ctx context.Context) ([]ConsoleState, error) {
	query := `
		SELECT key, value, updated_at
		FROM console_state
		ORDER BY key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка console_state: %w", err)
	}
	defer rows.Close()

	var states []ConsoleState
	for rows.Next() {
		var s ConsoleState
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования console_state: %w", err)
		}
		states = append(states, s)
	}
	return states, rows.Err()
}
