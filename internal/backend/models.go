// models.go — структуры запросов и ответов Patchview backend API.
package backend

import "github.com/arturkryukov/patchview/console-module/internal/domain/model"

// LoginRequest — тело запроса POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse — ответ login и setup-admin: токен + пользователь.
type AuthResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// ProfileUpdateRequest — тело запроса PUT /api/v1/auth/profile.
// Пустые поля не изменяются backend'ом.
type ProfileUpdateRequest struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

// profileResponse — ответ PUT /api/v1/auth/profile.
type profileResponse struct {
	User model.User `json:"user"`
}

// ChangePasswordRequest — тело запроса PUT /api/v1/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// SetupAdminRequest — тело запроса POST /api/v1/auth/setup-admin
// (first-time setup: создание первого администратора).
type SetupAdminRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// checkAdminUsersResponse — ответ GET /api/v1/auth/check-admin-users.
type checkAdminUsersResponse struct {
	HasAdminUsers bool `json:"hasAdminUsers"`
}

// hostListResponse — ответ GET /api/v1/hosts.
type hostListResponse struct {
	Hosts []model.Host `json:"hosts"`
	Total int          `json:"total"`
}

// packageListResponse — ответ GET /api/v1/packages/outdated.
type packageListResponse struct {
	Packages []model.PackageUpdate `json:"packages"`
	Total    int                   `json:"total"`
}

// userListResponse — ответ GET /api/v1/users.
type userListResponse struct {
	Users []model.User `json:"users"`
}
