package backend

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient создаёт клиент, указывающий на mock-сервер.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(srv.URL, srv.Client(), logger)
}

func TestLogin_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/auth/login" {
			t.Errorf("неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, ожидается application/json", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"token": "tok-123",
			"user": {"id": "u1", "username": "admin", "role": "admin", "is_active": true}
		}`))
	}))

	auth, err := client.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Login() вернул ошибку: %v", err)
	}
	if auth.Token != "tok-123" {
		t.Errorf("Token = %q, ожидается tok-123", auth.Token)
	}
	if auth.User.Username != "admin" {
		t.Errorf("User.Username = %q, ожидается admin", auth.User.Username)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid username or password"}`))
	}))

	_, err := client.Login(context.Background(), "admin", "wrong")
	if err == nil {
		t.Fatal("ожидалась ошибка на 401")
	}

	apiErr := AsAPIError(err)
	if apiErr == nil {
		t.Fatalf("ожидался *APIError, получено: %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, ожидается 401", apiErr.StatusCode)
	}
	if apiErr.Message != "invalid username or password" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestLogout_SendsBearerToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.Logout(context.Background(), "tok-123"); err != nil {
		t.Fatalf("Logout() вернул ошибку: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, ожидается Bearer tok-123", gotAuth)
	}
}

func TestCheckAdminUsers(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		expected bool
	}{
		{"администраторы есть", `{"hasAdminUsers": true}`, true},
		{"администраторов нет", `{"hasAdminUsers": false}`, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/auth/check-admin-users" {
					t.Errorf("неожиданный путь: %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(c.body))
			}))

			got, err := client.CheckAdminUsers(context.Background())
			if err != nil {
				t.Fatalf("CheckAdminUsers() вернул ошибку: %v", err)
			}
			if got != c.expected {
				t.Errorf("CheckAdminUsers() = %v, ожидается %v", got, c.expected)
			}
		})
	}
}

func TestCheckAdminUsers_ServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "database unavailable"}`))
	}))

	_, err := client.CheckAdminUsers(context.Background())
	if err == nil {
		t.Fatal("ожидалась ошибка на 500")
	}
	apiErr := AsAPIError(err)
	if apiErr == nil || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("ожидался *APIError со статусом 500, получено: %v", err)
	}
}

func TestUserPermissions(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/permissions/user-permissions" {
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"can_view_hosts": true, "can_manage_users": false}`))
	}))

	perms, err := client.UserPermissions(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("UserPermissions() вернул ошибку: %v", err)
	}
	if !perms["can_view_hosts"] {
		t.Error("can_view_hosts должно быть true")
	}
	if perms["can_manage_users"] {
		t.Error("can_manage_users должно быть false")
	}
}

func TestUpdateProfile(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/auth/profile" {
			t.Errorf("неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"firstName":"Ivan","email":"ivan@example.com"}` {
			t.Errorf("неожиданное тело запроса: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user": {"id": "u1", "username": "admin", "first_name": "Ivan", "email": "ivan@example.com", "role": "admin", "is_active": true}}`))
	}))

	user, err := client.UpdateProfile(context.Background(), "tok-123", ProfileUpdateRequest{
		FirstName: "Ivan",
		Email:     "ivan@example.com",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() вернул ошибку: %v", err)
	}
	if user.FirstName != "Ivan" {
		t.Errorf("FirstName = %q, ожидается Ivan", user.FirstName)
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "current password is incorrect"}`))
	}))

	err := client.ChangePassword(context.Background(), "tok-123", "wrong", "newpass")
	apiErr := AsAPIError(err)
	if apiErr == nil {
		t.Fatalf("ожидался *APIError, получено: %v", err)
	}
	if apiErr.Message != "current password is incorrect" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestSetupAdmin(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/auth/setup-admin" {
			t.Errorf("неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token": "tok-new", "user": {"id": "u1", "username": "root", "role": "admin", "is_active": true}}`))
	}))

	auth, err := client.SetupAdmin(context.Background(), SetupAdminRequest{
		Username: "root",
		Email:    "root@example.com",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("SetupAdmin() вернул ошибку: %v", err)
	}
	if auth.Token != "tok-new" {
		t.Errorf("Token = %q, ожидается tok-new", auth.Token)
	}
}

func TestListHosts_QueryParams(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "25" || q.Get("offset") != "50" {
			t.Errorf("пагинация: limit=%s offset=%s", q.Get("limit"), q.Get("offset"))
		}
		if q.Get("search") != "web" {
			t.Errorf("search = %q, ожидается web", q.Get("search"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hosts": [{"id": "h1", "hostname": "web-01", "os_name": "debian", "os_version": "12", "status": "active"}], "total": 1}`))
	}))

	hosts, total, err := client.ListHosts(context.Background(), "tok-123", "web", 25, 50)
	if err != nil {
		t.Fatalf("ListHosts() вернул ошибку: %v", err)
	}
	if total != 1 || len(hosts) != 1 {
		t.Fatalf("total = %d, hosts = %d", total, len(hosts))
	}
	if hosts[0].Hostname != "web-01" {
		t.Errorf("Hostname = %q", hosts[0].Hostname)
	}
}

func TestCheckUpdates(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/updates/check" {
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"outdated_packages": 42, "security_updates": 7, "hosts_affected": 5, "checked_at": "2026-08-25T10:00:00Z"}`))
	}))

	summary, err := client.CheckUpdates(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("CheckUpdates() вернул ошибку: %v", err)
	}
	if summary.OutdatedPackages != 42 || summary.SecurityUpdates != 7 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestAPIError_RawBodyFallback(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout"))
	}))

	_, err := client.CheckAdminUsers(context.Background())
	apiErr := AsAPIError(err)
	if apiErr == nil {
		t.Fatalf("ожидался *APIError, получено: %v", err)
	}
	if apiErr.Message != "upstream timeout" {
		t.Errorf("Message = %q, ожидается сырое тело", apiErr.Message)
	}
}
