package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/arturkryukov/patchview/console-module/internal/backend"
	"github.com/arturkryukov/patchview/console-module/internal/domain/model"
	"github.com/arturkryukov/patchview/console-module/internal/repository"
	"github.com/arturkryukov/patchview/console-module/internal/service"
	"github.com/arturkryukov/patchview/console-module/internal/session"
	"github.com/arturkryukov/patchview/console-module/internal/updates"
)

// memStateStorage — in-memory session.Storage.
type memStateStorage struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memStateStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", session.ErrKeyNotFound
	}
	return v, nil
}

func (s *memStateStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStateStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// memSettingsRepo — in-memory repository.UISettingsRepository.
type memSettingsRepo struct {
	data map[string]repository.UISetting
}

func (r *memSettingsRepo) Get(_ context.Context, key string) (*repository.UISetting, error) {
	s, ok := r.data[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *memSettingsRepo) Set(_ context.Context, key, value, updatedBy string) error {
	r.data[key] = repository.UISetting{Key: key, Value: value, UpdatedBy: updatedBy, UpdatedAt: time.Now()}
	return nil
}

func (r *memSettingsRepo) List(_ context.Context) ([]repository.UISetting, error) {
	var out []repository.UISetting
	for _, s := range r.data {
		out = append(out, s)
	}
	return out, nil
}

func (r *memSettingsRepo) ListByPrefix(_ context.Context, prefix string) ([]repository.UISetting, error) {
	var out []repository.UISetting
	for k, s := range r.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSettingsRepo) Delete(_ context.Context, key string) error {
	if _, ok := r.data[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.data, key)
	return nil
}

// memAuditRepo — in-memory repository.AuditLogRepository.
type memAuditRepo struct {
	entries []repository.AuditEntry
}

func (r *memAuditRepo) Insert(_ context.Context, username, action, details string) error {
	r.entries = append(r.entries, repository.AuditEntry{
		ID: uuid.New(), Username: username, Action: action, Details: details, CreatedAt: time.Now(),
	})
	return nil
}

func (r *memAuditRepo) Get(_ context.Context, id uuid.UUID) (*repository.AuditEntry, error) {
	for _, e := range r.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memAuditRepo) ListRecent(_ context.Context, limit int) ([]repository.AuditEntry, error) {
	if len(r.entries) > limit {
		return r.entries[len(r.entries)-limit:], nil
	}
	return r.entries, nil
}

func (r *memAuditRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// memSettingsAuditor — in-memory repository.SettingsAuditor: пишет настройку
// и запись аудита в соответствующие фейки.
type memSettingsAuditor struct {
	repo  *memSettingsRepo
	audit *memAuditRepo
}

func (a *memSettingsAuditor) SetWithAudit(ctx context.Context, key, value, updatedBy string) error {
	if err := a.repo.Set(ctx, key, value, updatedBy); err != nil {
		return err
	}
	return a.audit.Insert(ctx, updatedBy, repository.AuditActionSettingsChange, key+"="+value)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv — собранный обработчик с контроллером и фейковыми зависимостями.
type testEnv struct {
	handler    *ConsoleHandler
	controller *session.Controller
	audit      *memAuditRepo
}

// newTestEnv создаёт окружение против mock backend.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/permissions/user-permissions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"can_manage_settings": true}`))
	})
	mux.HandleFunc("/api/v1/updates/check", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"outdated_packages": 5, "security_updates": 1, "hosts_affected": 2, "checked_at": "2026-08-25T10:00:00Z"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := backend.New(srv.URL, srv.Client(), testLogger())
	cipher, err := session.NewCipher("test-key")
	if err != nil {
		t.Fatalf("NewCipher() ошибка: %v", err)
	}
	controller := session.NewController(client, &memStateStorage{data: map[string]string{}}, cipher, testLogger())

	settingsRepo := &memSettingsRepo{data: map[string]repository.UISetting{}}
	audit := &memAuditRepo{}
	auditor := &memSettingsAuditor{repo: settingsRepo, audit: audit}
	settingsSvc := service.NewUISettingsService(settingsRepo, auditor, testLogger())
	poller := updates.NewPoller(client, controller, &pollSettings{}, time.Minute, testLogger())

	return &testEnv{
		handler:    NewConsoleHandler(controller, poller, settingsSvc, audit, testLogger()),
		controller: controller,
		audit:      audit,
	}
}

// pollSettings — опрос всегда включён.
type pollSettings struct{}

func (pollSettings) IsUpdatePollEnabled(context.Context) bool { return true }

// authenticate устанавливает сессию и дожидается загрузки разрешений.
func (e *testEnv) authenticate(role string) {
	e.controller.SetAuthState("tok-123", &model.User{ID: "u1", Username: "admin", Role: role, IsActive: true})
	e.controller.WaitBackgroundFetches()
}

func TestGetSession_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.GetSession(rec, httptest.NewRequest(http.MethodGet, "/api/v1/console/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200", rec.Code)
	}

	var resp struct {
		Phase           string `json:"phase"`
		IsAuthenticated bool   `json:"is_authenticated"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	if resp.IsAuthenticated {
		t.Error("is_authenticated должен быть false до логина")
	}
	if resp.Phase != "INITIALISING" {
		t.Errorf("phase = %q, ожидается INITIALISING", resp.Phase)
	}
}

func TestGetSession_Authenticated(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate("admin")

	rec := httptest.NewRecorder()
	env.handler.GetSession(rec, httptest.NewRequest(http.MethodGet, "/api/v1/console/session", nil))

	var resp struct {
		Phase           string          `json:"phase"`
		IsAuthenticated bool            `json:"is_authenticated"`
		User            *model.User     `json:"user"`
		Permissions     map[string]bool `json:"permissions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	if !resp.IsAuthenticated || resp.Phase != "READY" {
		t.Errorf("ответ = %+v", resp)
	}
	if resp.User == nil || resp.User.Username != "admin" {
		t.Errorf("user = %+v", resp.User)
	}
	if !resp.Permissions["can_manage_settings"] {
		t.Error("permissions должны включать can_manage_settings")
	}
}

func TestGetUpdates_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.GetUpdates(rec, httptest.NewRequest(http.MethodGet, "/api/v1/console/updates", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, ожидается 401 до установления сессии", rec.Code)
	}
}

func TestCheckUpdates(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate("admin")

	rec := httptest.NewRecorder()
	env.handler.CheckUpdates(rec, httptest.NewRequest(http.MethodPost, "/api/v1/console/updates/check", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Summary *model.UpdateSummary `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	if resp.Summary == nil || resp.Summary.OutdatedPackages != 5 {
		t.Errorf("summary = %+v", resp.Summary)
	}
}

func TestSetSetting(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate("admin")

	r := chi.NewRouter()
	r.Put("/api/v1/console/settings/{key}", env.handler.SetSetting)

	// Валидная настройка
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/console/settings/ui.theme", strings.NewReader(`{"value":"dark"}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if len(env.audit.entries) != 1 || env.audit.entries[0].Action != repository.AuditActionSettingsChange {
		t.Errorf("аудит = %+v, ожидается запись settings_change", env.audit.entries)
	}

	// Невалидное значение
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/v1/console/settings/ui.theme", strings.NewReader(`{"value":"neon"}`))
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидается 400 на невалидное значение", rec.Code)
	}
}

func TestListAudit_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate("user")

	rec := httptest.NewRecorder()
	env.handler.ListAudit(rec, httptest.NewRequest(http.MethodGet, "/api/v1/console/audit", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("статус = %d, ожидается 403 для не-администратора", rec.Code)
	}

	env2 := newTestEnv(t)
	env2.authenticate("admin")
	env2.audit.Insert(context.Background(), "admin", repository.AuditActionLogin, "")

	rec = httptest.NewRecorder()
	env2.handler.ListAudit(rec, httptest.NewRequest(http.MethodGet, "/api/v1/console/audit", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("статус = %d, ожидается 200 для администратора", rec.Code)
	}
}
