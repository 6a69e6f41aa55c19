package quota

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
)

var (
	// ErrNotAuthenticated у запроса нет идентификатора пользователя.
	ErrNotAuthenticated = errors.New("user is not authenticated")
	// ErrStoreUnavailable хранилище недоступно или не ответило вовремя.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrLockUnavailable не удалось взять блокировку пользователя.
	ErrLockUnavailable = errors.New("user lock unavailable")
)

// storeFailure логирует исходную ошибку хранилища и возвращает вместо неё
// ErrStoreUnavailable, чтобы ошибки драйвера не выходили за пределы пакета.
func (b *base) storeFailure(op, userUID string, err error) error {
	b.metrics.StoreError(op)
	b.log.Error("record store call failed",
		sl.Op(op),
		sl.UserUID(userUID),
		sl.Err(err))
	return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
}

// conflictsExhausted логирует исчерпание попыток условной записи.
func (b *base) conflictsExhausted(op, userUID string) {
	b.log.Warn("conditional update kept losing races, denying",
		sl.Op(op),
		sl.UserUID(userUID),
		slog.Int("attempts", MaxConflictRetries))
}
