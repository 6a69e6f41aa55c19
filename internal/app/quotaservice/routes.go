// Package quotaservice собирает HTTP-сервис квот: хранилище, движок,
// публикацию событий, блокировки и маршруты.
package quotaservice

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/issue-quota/internal/http/handlers/health"
	quotacheck "github.com/magabrotheeeer/issue-quota/internal/http/handlers/quota/check"
	quotaconsume "github.com/magabrotheeeer/issue-quota/internal/http/handlers/quota/consume"
	"github.com/magabrotheeeer/issue-quota/internal/http/handlers/quota/trial"
	reissuecheck "github.com/magabrotheeeer/issue-quota/internal/http/handlers/reissue/check"
	reissueconsume "github.com/magabrotheeeer/issue-quota/internal/http/handlers/reissue/consume"
	"github.com/magabrotheeeer/issue-quota/internal/http/handlers/subscription/active"
	"github.com/magabrotheeeer/issue-quota/internal/http/handlers/subscription/grant"
	"github.com/magabrotheeeer/issue-quota/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/issue-quota/internal/http/middlewarectx"
	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// Engine операции движка квот, доступные через HTTP.
type Engine interface {
	CheckQuota(ctx context.Context, userUID string) (models.QuotaInfo, error)
	Consume(ctx context.Context, userUID string) (bool, error)
	TrialStatus(ctx context.Context, userUID string) (models.TrialStatus, error)
	ActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	CheckReissue(ctx context.Context, userUID string) (models.ReissueInfo, error)
	ConsumeReissue(ctx context.Context, userUID string) (bool, error)
}

// AdminStore операции хранилища для администратора и проверки живости.
type AdminStore interface {
	CreateSubscription(ctx context.Context, sub models.Subscription) (string, error)
	ListSubscriptions(ctx context.Context, userUID string, limit, offset int) ([]*models.Subscription, error)
	Ping(ctx context.Context) error
}

// Dependencies всё, что нужно маршрутам.
type Dependencies struct {
	Logger  *slog.Logger
	Engine  Engine
	Store   AdminStore
	Tokens  middlewarectx.TokenParser
	Metrics middlewarectx.RequestObserver
	Limiter *middlewarectx.UserLimiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, deps Dependencies) {
	logger := deps.Logger

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middlewarectx.MetricsMiddleware(deps.Metrics),
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger))
		r.Use(middlewarectx.RateLimitMiddleware(logger, deps.Limiter))

		r.Get("/quota", quotacheck.New(logger, deps.Engine).ServeHTTP)
		r.Post("/quota/consume", quotaconsume.New(logger, deps.Engine).ServeHTTP)
		r.Get("/quota/trial", trial.New(logger, deps.Engine).ServeHTTP)
		r.Get("/quota/reissue", reissuecheck.New(logger, deps.Engine).ServeHTTP)
		r.Post("/quota/reissue/consume", reissueconsume.New(logger, deps.Engine).ServeHTTP)
		r.Get("/subscriptions/active", active.New(logger, deps.Engine).ServeHTTP)

		// Группа администратора
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AdminOnly(logger))
			r.Post("/admin/subscriptions", grant.New(logger, deps.Store).ServeHTTP)
			r.Get("/admin/subscriptions", list.New(logger, deps.Store).ServeHTTP)
		})
	})

	r.Method(http.MethodGet, "/health", health.New(logger, deps.Store))
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
