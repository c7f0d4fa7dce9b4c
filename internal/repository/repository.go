// Пакет repository — слой доступа к данным PostgreSQL консоли:
// таблицы console_state, ui_settings и audit_log.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx: репозитории консоли
// работают одинаково внутри и вне транзакции.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner выполняет операции репозиториев консоли в одной транзакции.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции, передавая ей tx-привязанный DBTX.
// При ошибке fn — транзакция откатывается. При успехе — коммитится.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(db DBTX) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SettingsAuditor — атомарная запись настройки консоли вместе со следом
// в аудите: либо в базе видны и новое значение, и запись audit_log,
// либо ни то, ни другое.
type SettingsAuditor interface {
	SetWithAudit(ctx context.Context, key, value, updatedBy string) error
}

// settingsAuditor — реализация SettingsAuditor поверх TxRunner.
type settingsAuditor struct {
	tx *TxRunner
}

// NewSettingsAuditor создаёт транзакционный писатель настроек консоли.
func NewSettingsAuditor(pool *pgxpool.Pool) SettingsAuditor {
	return &settingsAuditor{tx: NewTxRunner(pool)}
}

// SetWithAudit сохраняет настройку и запись аудита в одной транзакции.
func (a *settingsAuditor) SetWithAudit(ctx context.Context, key, value, updatedBy string) error {
	return a.tx.RunInTx(ctx, func(db DBTX) error {
		settings := &uiSettingsRepo{db: db}
		if err := settings.Set(ctx, key, value, updatedBy); err != nil {
			return err
		}

		audit := &auditLogRepo{db: db}
		return audit.Insert(ctx, updatedBy, AuditActionSettingsChange, key+"="+value)
	})
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
