package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Действия, записываемые в аудит консоли.
const (
	AuditActionLogin          = "login"
	AuditActionLogout         = "logout"
	AuditActionSetupAdmin     = "setup_admin"
	AuditActionProfileUpdate  = "profile_update"
	AuditActionPasswordChange = "password_change"
	AuditActionSettingsChange = "settings_change"
)

// AuditEntry — модель записи из таблицы audit_log.
type AuditEntry struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID
	// Username — пользователь, выполнивший действие (пустой для системных).
	Username string
	// Action — тип действия (login, logout, settings_change, ...).
	Action string
	// Details — произвольное описание действия.
	Details string
	// CreatedAt — время действия.
	CreatedAt time.Time
}

// AuditLogRepository — интерфейс для таблицы audit_log.
type AuditLogRepository interface {
	// Insert записывает действие в аудит. ID генерируется при вставке.
	Insert(ctx context.Context, username, action, details string) error
	// Get возвращает запись по ID. Если не найдена — ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*AuditEntry, error)
	// ListRecent возвращает последние записи аудита (новые первыми).
	ListRecent(ctx context.Context, limit int) ([]AuditEntry, error)
	// DeleteOlderThan удаляет записи старше cutoff. Возвращает число удалённых.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// auditLogRepo — реализация AuditLogRepository.
type auditLogRepo struct {
	db DBTX
}

// NewAuditLogRepository создаёт репозиторий аудита консоли.
func NewAuditLogRepository(db DBTX) AuditLogRepository {
	return &auditLogRepo{db: db}
}

// Insert записывает действие в аудит.
func (r *auditLogRepo) Insert(ctx context.Context, username, action, details string) error {
	query := `
		INSERT INTO audit_log (id, username, action, details)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, uuid.New(), username, action, details)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка записи в audit_log: %w", err)
	}
	return nil
}

// Get возвращает запись аудита по ID.
func (r *auditLogRepo) Get(ctx context.Context, id uuid.UUID) (*AuditEntry, error) {
	query := `
		SELECT id, username, action, details, created_at
		FROM audit_log
		WHERE id = $1`

	e := &AuditEntry{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Username, &e.Action, &e.Details, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения audit_log[%s]: %w", id, err)
	}
	return e, nil
}

// ListRecent возвращает последние записи аудита, новые первыми.
func (r *auditLogRepo) ListRecent(ctx context.Context, limit int) ([]AuditEntry, error) {
	query := `
		SELECT id, username, action, details, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка audit_log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования audit_log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan удаляет записи аудита старше cutoff.
func (r *auditLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM audit_log WHERE created_at < $1`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки audit_log: %w", err)
	}
	return tag.RowsAffected(), nil
}
