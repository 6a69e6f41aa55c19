// Package lock реализует блокировку пользователя в Redis на время списания квоты.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/issue-quota/internal/config"
	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
)

// ErrNotAcquired блокировку держит другой запрос дольше времени ожидания.
var ErrNotAcquired = errors.New("lock is held by another request")

const (
	defaultTTL   = 5 * time.Second
	retryBackoff = 25 * time.Millisecond
	// leaseMarginDivisor доля ttl, на которую контекст операции короче блокировки.
	leaseMarginDivisor = 10
)

// unlockScript снимает блокировку, только если она всё ещё принадлежит владельцу.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker блокировка через SET NX PX с токеном владельца.
type RedisLocker struct {
	Db     *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger *slog.Logger
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*redis.Client, error) {
	const op = "lock.InitServer"

	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return db, nil
}

// New создаёт RedisLocker. ttl ограничивает время жизни блокировки, если
// владелец не снял её сам; ожидание чужой блокировки не дольше ttl.
// Операция под блокировкой должна укладываться в ttl: контекст, который
// возвращает Lock, истекает раньше, чем блокировка в Redis.
func New(db *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{Db: db, ttl: ttl, wait: ttl, logger: logger}
}

// Lock берёт блокировку key и возвращает контекст, который отменяется до
// истечения блокировки, и функцию её снятия.
func (l *RedisLocker) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	const op = "lock.Lock"

	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		attempt := time.Now()
		ok, err := l.Db.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			leaseCtx, cancel := context.WithDeadline(ctx, l.leaseEnd(attempt))
			return leaseCtx, func() {
				cancel()
				l.unlock(key, token)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrNotAcquired)
		}

		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(retryBackoff):
		}
	}
}

// leaseEnd момент, до которого владелец может считать блокировку своей.
// Отсчёт идёт от отправки SET NX, запас покрывает расхождение часов с Redis.
func (l *RedisLocker) leaseEnd(attempt time.Time) time.Time {
	return attempt.Add(l.ttl - l.ttl/leaseMarginDivisor)
}

func (l *RedisLocker) unlock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := unlockScript.Run(ctx, l.Db, []string{key}, token).Err(); err != nil {
		l.logger.Warn("failed to release user lock", slog.String("key", key), sl.Err(err))
	}
}
