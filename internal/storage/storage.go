// Package storage содержит общие для всех реализаций хранилища ошибки.
// Реализации находятся в подпакетах repository (PostgreSQL) и memory.
package storage

import "errors"

var (
	// ErrSubscriptionNotFound подписка не найдена.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrSubscriptionExists подписка с таким ID уже существует.
	ErrSubscriptionExists = errors.New("subscription already exists")
)
