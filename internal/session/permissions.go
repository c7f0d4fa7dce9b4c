package session

import "github.com/arturkryukov/patchview/console-module/internal/domain/rbac"

// Удобные предикаты разрешений — тонкие обёртки над HasPermission
// для использования в обработчиках и шаблонах страниц.

// CanViewDashboard — доступ к странице Dashboard.
func (c *Controller) CanViewDashboard() bool {
	return c.HasPermission(rbac.PermViewDashboard)
}

// CanViewHosts — доступ к списку хостов.
func (c *Controller) CanViewHosts() bool {
	return c.HasPermission(rbac.PermViewHosts)
}

// CanManageHosts — управление хостами.
func (c *Controller) CanManageHosts() bool {
	return c.HasPermission(rbac.PermManageHosts)
}

// CanViewPackages — доступ к списку пакетов.
func (c *Controller) CanViewPackages() bool {
	return c.HasPermission(rbac.PermViewPackages)
}

// CanManagePackages — управление пакетами.
func (c *Controller) CanManagePackages() bool {
	return c.HasPermission(rbac.PermManagePackages)
}

// CanViewUsers — доступ к списку пользователей.
func (c *Controller) CanViewUsers() bool {
	return c.HasPermission(rbac.PermViewUsers)
}

// CanManageUsers — управление пользователями.
func (c *Controller) CanManageUsers() bool {
	return c.HasPermission(rbac.PermManageUsers)
}

// CanViewReports — доступ к отчётам.
func (c *Controller) CanViewReports() bool {
	return c.HasPermission(rbac.PermViewReports)
}

// CanExportData — экспорт данных.
func (c *Controller) CanExportData() bool {
	return c.HasPermission(rbac.PermExportData)
}

// CanManageSettings — управление настройками консоли.
func (c *Controller) CanManageSettings() bool {
	return c.HasPermission(rbac.PermManageSettings)
}
