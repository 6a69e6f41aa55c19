// Package clock предоставляет источник текущего времени, который можно подменить в тестах.
package clock

import (
	"sync"
	"time"
)

// Clock возвращает текущий момент времени.
type Clock interface {
	Now() time.Time
}

// Real использует системные часы.
type Real struct{}

// Now возвращает текущее время в UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fixed часы с ручным управлением для тестов.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed создаёт часы, остановленные на моменте now.
func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

// Now возвращает установленный момент.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set переставляет часы на момент now.
func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Advance сдвигает часы вперёд на d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
