// Package middlewarectx содержит HTTP middleware сервиса квот: проверку JWT,
// проверку роли администратора, ограничение частоты запросов пользователя
// и учёт длительности запросов.
//
// JWTMiddleware кладёт идентификатор пользователя и роль в контекст запроса,
// обработчики читают их функциями UserUIDFrom и RoleFrom.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/issue-quota/internal/http/response"
	"github.com/magabrotheeeer/issue-quota/internal/lib/jwt"
	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID ключ для идентификатора пользователя в контексте
	UserUID Key = "user_uid"
	// Role ключ для роли пользователя в контексте
	Role Key = "role"
)

// TokenParser разбирает и проверяет JWT токен.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// UserUIDFrom возвращает идентификатор пользователя из контекста или пустую строку.
func UserUIDFrom(ctx context.Context) string {
	uid, _ := ctx.Value(UserUID).(string)
	return uid
}

// RoleFrom возвращает роль пользователя из контекста или пустую строку.
func RoleFrom(ctx context.Context) string {
	role, _ := ctx.Value(Role).(string)
	return role
}

// WithIdentity кладёт идентификатор пользователя и роль в контекст.
func WithIdentity(ctx context.Context, userUID, role string) context.Context {
	ctx = context.WithValue(ctx, UserUID, userUID)
	return context.WithValue(ctx, Role, role)
}

// JWTMiddleware проверяет JWT в заголовке Authorization. Если токен валиден,
// добавляет user_uid и роль в контекст, иначе отвечает 401 Unauthorized.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				sl.Op(op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			claims, err := parser.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.UserUID, claims.Role)))
		})
	}
}

// AdminOnly пропускает только запросы с ролью администратора.
func AdminOnly(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFrom(r.Context()) != jwt.RoleAdmin {
				log.Warn("admin role required",
					sl.UserUID(UserUIDFrom(r.Context())),
					slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
