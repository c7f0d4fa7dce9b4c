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

	"github.com/google/uuid"

	"github.com/arturkryukov/patchview/console-module/internal/backend"
	"github.com/arturkryukov/patchview/console-module/internal/domain/model"
	"github.com/arturkryukov/patchview/console-module/internal/domain/rbac"
	"github.com/arturkryukov/patchview/console-module/internal/repository"
	"github.com/arturkryukov/patchview/console-module/internal/service"
	"github.com/arturkryukov/patchview/console-module/internal/session"
	"github.com/arturkryukov/patchview/console-module/internal/ui/templates"
	"github.com/arturkryukov/patchview/console-module/internal/updates"
)

// --- Fakes --- //

type memStorage struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", session.ErrKeyNotFound
	}
	return v, nil
}

func (s *memStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

type fakeSettingsRepo struct {
	mu   sync.Mutex
	data map[string]repository.UISetting
}

func (r *fakeSettingsRepo) Get(_ context.Context, key string) (*repository.UISetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSettingsRepo) Set(_ context.Context, key, value, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = repository.UISetting{Key: key, Value: value, UpdatedAt: time.Now(), UpdatedBy: updatedBy}
	return nil
}

func (r *fakeSettingsRepo) List(_ context.Context) ([]repository.UISetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.UISetting
	for _, s := range r.data {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSettingsRepo) ListByPrefix(_ context.Context, prefix string) ([]repository.UISetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.UISetting
	for k, s := range r.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSettingsRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.data, key)
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []repository.AuditEntry
}

func (r *fakeAuditRepo) Insert(_ context.Context, username, action, details string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, repository.AuditEntry{
		ID:        uuid.New(),
		Username:  username,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *fakeAuditRepo) Get(_ context.Context, _ uuid.UUID) (*repository.AuditEntry, error) {
	return nil, repository.ErrNotFound
}

func (r *fakeAuditRepo) ListRecent(_ context.Context, limit int) ([]repository.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) > limit {
		return r.entries[len(r.entries)-limit:], nil
	}
	return r.entries, nil
}

func (r *fakeAuditRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// fakeSettingsAuditor — repository.SettingsAuditor поверх фейков настроек и аудита.
type fakeSettingsAuditor struct {
	repo  *fakeSettingsRepo
	audit *fakeAuditRepo
}

func (a *fakeSettingsAuditor) SetWithAudit(ctx context.Context, key, value, updatedBy string) error {
	if err := a.repo.Set(ctx, key, value, updatedBy); err != nil {
		return err
	}
	return a.audit.Insert(ctx, updatedBy, repository.AuditActionSettingsChange, key+"="+value)
}

func (r *fakeAuditRepo) lastAction() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return ""
	}
	return r.entries[len(r.entries)-1].Action
}

// --- Test environment --- //

type testEnv struct {
	controller *session.Controller
	audit      *fakeAuditRepo

	auth      *AuthHandler
	setup     *SetupHandler
	dashboard *DashboardHandler
	settings  *SettingsHandler
	profile   *ProfileHandler
}

// newTestEnv собирает обработчики против mock backend.
func newTestEnv(t *testing.T, backendHandler http.Handler) *testEnv {
	t.Helper()

	server := httptest.NewServer(backendHandler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cipher, err := session.NewCipher("")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	client := backend.New(server.URL, server.Client(), logger)
	controller := session.NewController(client, &memStorage{data: make(map[string]string)}, cipher, logger)
	controller.Initialize(context.Background())

	settingsRepo := &fakeSettingsRepo{data: make(map[string]repository.UISetting)}
	audit := &fakeAuditRepo{}
	auditor := &fakeSettingsAuditor{repo: settingsRepo, audit: audit}
	settingsSvc := service.NewUISettingsService(settingsRepo, auditor, logger)
	poller := updates.NewPoller(client, controller, settingsSvc, time.Minute, logger)

	renderer, err := templates.New(logger)
	if err != nil {
		t.Fatalf("templates.New: %v", err)
	}

	return &testEnv{
		controller: controller,
		audit:      audit,
		auth:       NewAuthHandler(controller, poller, settingsSvc, renderer, audit, logger),
		setup:      NewSetupHandler(controller, poller, settingsSvc, renderer, audit, logger),
		dashboard:  NewDashboardHandler(controller, poller, settingsSvc, client, renderer, logger),
		settings:   NewSettingsHandler(controller, poller, settingsSvc, renderer, audit, logger),
		profile:    NewProfileHandler(controller, poller, settingsSvc, renderer, audit, logger),
	}
}

// defaultBackend — mock backend: администраторы есть, login принимает
// alice/secret, разрешения полные.
func defaultBackend() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/check-admin-users", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"hasAdminUsers": true}`))
	})
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &req); err != nil || req.Username != "alice" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"token": "test-token", "user": {"id": "u1", "username": "alice", "role": "admin", "is_active": true}}`))
	})
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v1/permissions/user-permissions", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"can_view_dashboard": true, "can_view_hosts": true, "can_manage_settings": true}`))
	})
	mux.HandleFunc("/api/v1/dashboard/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"total_hosts": 12, "active_hosts": 10, "hosts_needing_updates": 3, "outdated_packages": 7, "security_updates": 1}`))
	})
	return mux
}

func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// --- Tests --- //

func TestHandleLogin_Success(t *testing.T) {
	env := newTestEnv(t, defaultBackend())

	form := strings.NewReader("username=alice&password=secret")
	req := httptest.NewRequest(http.MethodPost, "/login", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	env.auth.HandleLogin(rec, req)
	env.controller.WaitBackgroundFetches()

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("ожидался 303, получен %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("ожидался redirect на /, получен %q", loc)
	}
	if !env.controller.IsAuthenticated() {
		t.Error("после успешного login контроллер должен быть аутентифицирован")
	}
	if env.audit.lastAction() != repository.AuditActionLogin {
		t.Errorf("ожидалась запись аудита login, получено %q", env.audit.lastAction())
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, defaultBackend())

	form := strings.NewReader("username=alice&password=wrong")
	req := httptest.NewRequest(http.MethodPost, "/login", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	env.auth.HandleLogin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200 (повторный показ формы), получен %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Invalid credentials") {
		t.Error("на форме должно отображаться сообщение об ошибке от backend")
	}
	if !strings.Contains(body, `value="alice"`) {
		t.Error("введённый username должен сохраняться на форме")
	}
	if env.controller.IsAuthenticated() {
		t.Error("после неудачного login контроллер не должен быть аутентифицирован")
	}
}

func TestHandleLogout_ClearsSession(t *testing.T) {
	env := newTestEnv(t, defaultBackend())
	env.controller.SetAuthState("test-token", &model.User{Username: "alice", Role: rbac.RoleAdmin})
	env.controller.WaitBackgroundFetches()

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()

	env.auth.HandleLogout(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("ожидался 303, получен %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("ожидался redirect на /login, получен %q", loc)
	}
	if env.controller.IsAuthenticated() {
		t.Error("после logout контроллер не должен быть аутентифицирован")
	}
	if env.audit.lastAction() != repository.AuditActionLogout {
		t.Errorf("ожидалась запись аудита logout, получено %q", env.audit.lastAction())
	}
}

func TestHandleDashboard_RendersStats(t *testing.T) {
	env := newTestEnv(t, defaultBackend())
	env.controller.SetAuthState("test-token", &model.User{Username: "alice", Role: rbac.RoleAdmin})
	env.controller.WaitBackgroundFetches()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	env.dashboard.HandleDashboard(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "12") {
		t.Error("страница должна содержать количество хостов из backend")
	}
	if !strings.Contains(body, "alice") {
		t.Error("layout должен показывать имя пользователя")
	}
}

func TestHandleDashboard_BackendFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/check-admin-users", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"hasAdminUsers": true}`))
	})
	mux.HandleFunc("/api/v1/permissions/user-permissions", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/v1/dashboard/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	env := newTestEnv(t, mux)
	env.controller.SetAuthState("test-token", &model.User{Username: "alice", Role: rbac.RoleAdmin})
	env.controller.WaitBackgroundFetches()

	rec := httptest.NewRecorder()
	env.dashboard.HandleDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ошибка backend не должна валить страницу, получен %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Failed to load statistics") {
		t.Error("страница должна показывать сообщение об ошибке загрузки статистики")
	}
}

func TestHandleSetup_PasswordMismatch(t *testing.T) {
	env := newTestEnv(t, defaultBackend())

	form := strings.NewReader("username=root&password=one&confirmPassword=two&email=root@example.com")
	req := httptest.NewRequest(http.MethodPost, "/setup", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	env.setup.HandleSetup(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200 (повторный показ формы), получен %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Passwords do not match") {
		t.Error("ожидалось сообщение о несовпадении паролей")
	}
}

func TestHandleSettingUpdate(t *testing.T) {
	env := newTestEnv(t, defaultBackend())
	env.controller.SetAuthState("test-token", &model.User{Username: "alice", Role: rbac.RoleAdmin})
	env.controller.WaitBackgroundFetches()

	form := strings.NewReader("key=ui.theme&value=dark")
	req := httptest.NewRequest(http.MethodPost, "/settings", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	env.settings.HandleSettingUpdate(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("ожидался 303, получен %d", rec.Code)
	}
	if env.audit.lastAction() != repository.AuditActionSettingsChange {
		t.Errorf("ожидалась запись аудита settings_change, получено %q", env.audit.lastAction())
	}

	// Некорректное значение — flash с ошибкой, аудит не пишется.
	form = strings.NewReader("key=ui.theme&value=neon")
	req = httptest.NewRequest(http.MethodPost, "/settings", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()

	env.settings.HandleSettingUpdate(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("ожидался 303, получен %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Location"), "kind=error") {
		t.Errorf("ожидался flash с ошибкой, получен %q", rec.Header().Get("Location"))
	}
}

func TestHandleSettingsPage_ListsPermissionDictionary(t *testing.T) {
	env := newTestEnv(t, defaultBackend())
	env.controller.SetAuthState("test-token", &model.User{Username: "alice", Role: rbac.RoleAdmin})
	env.controller.WaitBackgroundFetches()

	rec := httptest.NewRecorder()
	env.settings.HandleSettingsPage(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	body := rec.Body.String()
	// Страница показывает полный словарь разрешений, включая не выданные.
	for _, name := range []string{rbac.PermViewDashboard, rbac.PermManageUsers, rbac.PermExportData} {
		if !strings.Contains(body, name) {
			t.Errorf("страница настроек должна перечислять разрешение %q", name)
		}
	}
}

func TestHandleProfileUpdate_Flash(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/check-admin-users", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"hasAdminUsers": true}`))
	})
	mux.HandleFunc("/api/v1/permissions/user-permissions", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/v1/auth/profile", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"user": {"id": "u1", "username": "alice", "email": "new@example.com", "role": "admin", "is_active": true}}`))
	})
	env := newTestEnv(t, mux)
	env.controller.SetAuthState("test-token", &model.User{Username: "alice", Role: rbac.RoleAdmin})
	env.controller.WaitBackgroundFetches()

	form := strings.NewReader("email=new@example.com")
	req := httptest.NewRequest(http.MethodPost, "/profile", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	env.profile.HandleProfileUpdate(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("ожидался 303, получен %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Location"), "kind=success") {
		t.Errorf("ожидался flash об успехе, получен %q", rec.Header().Get("Location"))
	}
	if user := env.controller.CurrentUser(); user == nil || user.Email != "new@example.com" {
		t.Error("профиль в сессии должен обновиться данными из backend")
	}
	if env.audit.lastAction() != repository.AuditActionProfileUpdate {
		t.Errorf("ожидалась запись аудита profile_update, получено %q", env.audit.lastAction())
	}
}
