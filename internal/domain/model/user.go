// Пакет model — доменные модели Console Module.
// Модели описывают данные, приходящие из Patchview backend API.
package model

import "time"

// User — учётная запись оператора консоли.
// Приходит из backend при login и сохраняется в сессии оператора.
type User struct {
	// ID — идентификатор пользователя в backend.
	ID string `json:"id"`
	// Username — имя для входа.
	Username string `json:"username"`
	// Email — email пользователя.
	Email string `json:"email"`
	// FirstName — имя.
	FirstName string `json:"first_name,omitempty"`
	// LastName — фамилия.
	LastName string `json:"last_name,omitempty"`
	// Role — роль (admin, user).
	Role string `json:"role"`
	// IsActive — активна ли учётная запись.
	IsActive bool `json:"is_active"`
	// LastLogin — время последнего входа.
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// DisplayName возвращает имя для отображения в UI:
// "Имя Фамилия" если заданы, иначе username.
func (u *User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}
