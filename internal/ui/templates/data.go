package templates

import (
	"github.com/arturkryukov/patchview/console-module/internal/domain/model"
	"github.com/arturkryukov/patchview/console-module/internal/repository"
)

// BaseData — общие данные layout: навигация, сессия, flash-сообщение.
type BaseData struct {
	Title   string
	Active  string
	ShowNav bool
	Theme   string

	Username        string
	IsAdmin         bool
	CanViewHosts    bool
	CanViewPackages bool
	CanViewUsers    bool

	// Updates — сводка последней проверки обновлений (badge в шапке).
	Updates *model.UpdateSummary

	Flash     string
	FlashKind string // success, error
}

// LoginData — данные страницы входа.
type LoginData struct {
	BaseData
	Error    string
	Username string
}

// SetupData — данные страницы first-time setup.
type SetupData struct {
	BaseData
	Error     string
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// DashboardData — данные страницы Dashboard.
type DashboardData struct {
	BaseData
	Stats      *model.DashboardStats
	StatsError string
}

// HostsData — данные страницы списка хостов.
type HostsData struct {
	BaseData
	Hosts     []model.Host
	Total     int
	Search    string
	Page      int
	PageSize  int
	HasNext   bool
	HasPrev   bool
	ListError string
}

// PackagesData — данные страницы пакетов с обновлениями.
type PackagesData struct {
	BaseData
	Packages  []model.PackageUpdate
	Total     int
	Page      int
	PageSize  int
	HasNext   bool
	HasPrev   bool
	ListError string
}

// UsersData — данные страницы пользователей.
type UsersData struct {
	BaseData
	Users     []model.User
	ListError string
}

// ProfileData — данные страницы профиля.
type ProfileData struct {
	BaseData
	User *model.User
}

// PermissionStatus — именованное разрешение и признак, выдано ли оно
// текущему пользователю.
type PermissionStatus struct {
	Name    string
	Granted bool
}

// SettingsData — данные страницы настроек.
type SettingsData struct {
	BaseData
	Settings  []repository.UISetting
	KnownKeys map[string]string
	// Permissions — полный словарь разрешений консоли со статусом
	// текущего пользователя.
	Permissions []PermissionStatus
	Audit       []repository.AuditEntry
}
