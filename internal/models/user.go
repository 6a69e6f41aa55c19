// Package models содержит доменные структуры движка квот: пробный период
// пользователя, подписку и производные ответы о доступности действия.
package models

import "time"

// TrialState хранит счётчики пробного периода, встроенные в запись пользователя.
// Отсутствие записи (nil) означает, что пробный период ещё не начинался.
type TrialState struct {
	Used        int        // Количество бесплатных действий в текущем окне
	PeriodStart *time.Time // Начало текущего окна, nil если окно не начиналось
}

// TrialStatus описывает состояние пробного периода на текущий момент.
type TrialStatus struct {
	Available   bool      `json:"available"`
	Remaining   int       `json:"remaining"`
	Used        int       `json:"used"`
	Total       int       `json:"total"`
	PeriodStart time.Time `json:"period_start"`
	ResetAt     time.Time `json:"reset_at"`
}
