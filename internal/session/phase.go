package session

// Phase — фаза жизненного цикла сессии консоли.
// Последовательность строго односторонняя:
// INITIALISING → CHECKING_SETUP → READY (CHECKING_SETUP может быть пропущена
// при успешном восстановлении сохранённой сессии).
type Phase int

const (
	// PhaseInitialising — восстановление сохранённой сессии из хранилища.
	PhaseInitialising Phase = iota
	// PhaseCheckingSetup — проверка наличия администраторов в backend
	// (нужен ли first-time setup).
	PhaseCheckingSetup
	// PhaseReady — инициализация завершена, консоль готова к работе.
	// Терминальная фаза: из READY переходов нет.
	PhaseReady
)

// String возвращает строковое представление фазы.
func (p Phase) String() string {
	switch p {
	case PhaseInitialising:
		return "INITIALISING"
	case PhaseCheckingSetup:
		return "CHECKING_SETUP"
	case PhaseReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}
