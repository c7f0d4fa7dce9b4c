package model

import "time"

// Host — наблюдаемый хост из Patchview backend.
type Host struct {
	// ID — идентификатор хоста.
	ID string `json:"id"`
	// Hostname — имя хоста.
	Hostname string `json:"hostname"`
	// IP — адрес хоста.
	IP string `json:"ip,omitempty"`
	// OSName — название ОС (например, "debian").
	OSName string `json:"os_name"`
	// OSVersion — версия ОС.
	OSVersion string `json:"os_version"`
	// Status — состояние агента (active, inactive, stale).
	Status string `json:"status"`
	// OutdatedPackages — количество пакетов с доступными обновлениями.
	OutdatedPackages int `json:"outdated_packages"`
	// SecurityUpdates — количество security-обновлений.
	SecurityUpdates int `json:"security_updates"`
	// LastReport — время последнего отчёта агента.
	LastReport *time.Time `json:"last_report,omitempty"`
}

// PackageUpdate — пакет с доступным обновлением.
type PackageUpdate struct {
	// Name — имя пакета.
	Name string `json:"name"`
	// CurrentVersion — установленная версия.
	CurrentVersion string `json:"current_version"`
	// AvailableVersion — доступная версия.
	AvailableVersion string `json:"available_version"`
	// IsSecurity — является ли обновление security-патчем.
	IsSecurity bool `json:"is_security"`
	// HostCount — на скольких хостах пакет требует обновления.
	HostCount int `json:"host_count"`
}

// DashboardStats — сводная статистика для Dashboard.
type DashboardStats struct {
	// TotalHosts — всего хостов.
	TotalHosts int `json:"total_hosts"`
	// ActiveHosts — хостов с активным агентом.
	ActiveHosts int `json:"active_hosts"`
	// HostsNeedingUpdates — хостов с доступными обновлениями.
	HostsNeedingUpdates int `json:"hosts_needing_updates"`
	// OutdatedPackages — всего пакетов с обновлениями.
	OutdatedPackages int `json:"outdated_packages"`
	// SecurityUpdates — всего security-обновлений.
	SecurityUpdates int `json:"security_updates"`
}

// UpdateSummary — сводка проверки обновлений (фоновый poller).
type UpdateSummary struct {
	// OutdatedPackages — пакетов с доступными обновлениями.
	OutdatedPackages int `json:"outdated_packages"`
	// SecurityUpdates — из них security.
	SecurityUpdates int `json:"security_updates"`
	// HostsAffected — затронутых хостов.
	HostsAffected int `json:"hosts_affected"`
	// CheckedAt — время последней успешной проверки.
	CheckedAt time.Time `json:"checked_at"`
}
