// Пакет rbac — словарь ролей и именованных разрешений консоли.
// Разрешения выдаются backend'ом per-user; консоль только проверяет их.
// Правило: неизвестное или ещё не загруженное разрешение = запрещено.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// validRoles — допустимые значения model.User.Role.
var validRoles = map[string]struct{}{
	RoleUser:  {},
	RoleAdmin: {},
}

// Именованные разрешения, приходящие из backend
// (GET /api/v1/permissions/user-permissions).
const (
	PermViewDashboard  = "can_view_dashboard"
	PermViewHosts      = "can_view_hosts"
	PermManageHosts    = "can_manage_hosts"
	PermViewPackages   = "can_view_packages"
	PermManagePackages = "can_manage_packages"
	PermViewUsers      = "can_view_users"
	PermManageUsers    = "can_manage_users"
	PermViewReports    = "can_view_reports"
	PermExportData     = "can_export_data"
	PermManageSettings = "can_manage_settings"
)

// KnownPermissions — все разрешения, известные консоли.
// Используется страницей настроек для отображения полного набора.
var KnownPermissions = []string{
	PermViewDashboard,
	PermViewHosts,
	PermManageHosts,
	PermViewPackages,
	PermManagePackages,
	PermViewUsers,
	PermManageUsers,
	PermViewReports,
	PermExportData,
	PermManageSettings,
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := validRoles[role]
	return ok
}

// IsAdminRole проверяет, даёт ли роль административные привилегии.
func IsAdminRole(role string) bool {
	return role == RoleAdmin
}
