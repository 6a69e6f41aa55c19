package middlewarectx

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/issue-quota/internal/http/response"
	"github.com/magabrotheeeer/issue-quota/internal/lib/clock"
	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
)

// DefaultLimiterIdleTTL через сколько простоя bucket пользователя удаляется.
const DefaultLimiterIdleTTL = 10 * time.Minute

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserLimiter хранит отдельный token bucket на каждого пользователя и удаляет
// bucket'ы, к которым не обращались дольше idleTTL.
type UserLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*userBucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	clock     clock.Clock
	lastSweep time.Time
}

// LimiterOption настраивает UserLimiter.
type LimiterOption func(*UserLimiter)

// WithIdleTTL задаёт время простоя, после которого bucket удаляется.
func WithIdleTTL(d time.Duration) LimiterOption {
	return func(l *UserLimiter) {
		if d > 0 {
			l.idleTTL = d
		}
	}
}

// WithLimiterClock подменяет часы, по которым считается простой.
func WithLimiterClock(c clock.Clock) LimiterOption {
	return func(l *UserLimiter) {
		l.clock = c
	}
}

// NewUserLimiter создаёт UserLimiter: limit запросов в секунду с запасом burst.
func NewUserLimiter(limit float64, burst int, opts ...LimiterOption) *UserLimiter {
	l := &UserLimiter{
		buckets: make(map[string]*userBucket),
		limit:   rate.Limit(limit),
		burst:   burst,
		idleTTL: DefaultLimiterIdleTTL,
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(l)
	}
	// за idleTTL bucket должен успеть наполниться, иначе удаление сбросит ограничение
	if limit > 0 {
		refill := time.Duration(float64(burst) / limit * float64(time.Second))
		l.idleTTL = max(l.idleTTL, refill)
	}
	l.lastSweep = l.clock.Now()
	return l
}

// Allow сообщает, можно ли обработать ещё один запрос пользователя key.
func (l *UserLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.evictIdle(now)
	}
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &userBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now
	l.mu.Unlock()

	return bucket.limiter.Allow()
}

// Len возвращает количество хранимых bucket'ов.
func (l *UserLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evictIdle удаляет bucket'ы, простаивающие дольше idleTTL. Вызывается под мьютексом.
func (l *UserLimiter) evictIdle(now time.Time) {
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) >= l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// RateLimitMiddleware ограничивает частоту запросов одного пользователя.
// Запросы без пользователя в контексте учитываются по адресу клиента.
func RateLimitMiddleware(log *slog.Logger, limiter *UserLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := UserUIDFrom(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}
			if !limiter.Allow(key) {
				log.Warn("too many requests", sl.UserUID(UserUIDFrom(r.Context())))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
