package quotaservice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/issue-quota/internal/config"
	"github.com/magabrotheeeer/issue-quota/internal/events"
	"github.com/magabrotheeeer/issue-quota/internal/http/middlewarectx"
	"github.com/magabrotheeeer/issue-quota/internal/lib/jwt"
	"github.com/magabrotheeeer/issue-quota/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/lock"
	"github.com/magabrotheeeer/issue-quota/internal/metrics"
	"github.com/magabrotheeeer/issue-quota/internal/migrations"
	"github.com/magabrotheeeer/issue-quota/internal/quota"
	"github.com/magabrotheeeer/issue-quota/internal/services/scheduler"
	"github.com/magabrotheeeer/issue-quota/internal/storage/memory"
	"github.com/magabrotheeeer/issue-quota/internal/storage/repository"
)

// MemoryStorage значение storage_connection_string, при котором записи хранятся в памяти процесса.
const MemoryStorage = "memory"

const shutdownTimeout = 15 * time.Second

// Store хранилище, которое нужно сервису целиком.
type Store interface {
	quota.RecordStore
	quota.OverdueFinder
	AdminStore
}

// App HTTP-сервис квот и его ресурсы.
type App struct {
	server    *http.Server
	scheduler *scheduler.SchedulerService
	logger    *slog.Logger
	closers   []func() error
}

// New поднимает зависимости по конфигу и собирает HTTP-сервер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{logger: logger}

	store, err := app.openStore(cfg)
	if err != nil {
		app.close()
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	opts := []quota.Option{
		quota.WithLogger(logger),
		quota.WithMetrics(m),
		quota.WithStoreTimeout(cfg.StoreTimeout),
	}

	publisher, err := app.openPublisher(cfg)
	if err != nil {
		app.close()
		return nil, err
	}
	if publisher != nil {
		opts = append(opts, quota.WithPublisher(publisher))
	}

	locker, err := app.openLocker(ctx, cfg)
	if err != nil {
		app.close()
		return nil, err
	}
	if locker != nil {
		opts = append(opts, quota.WithLocker(locker))
	}

	engine := quota.New(store, opts...)
	if cfg.SweepInterval > 0 {
		app.scheduler = scheduler.NewSchedulerService(engine, store, logger, cfg.SweepInterval, cfg.SweepBatch)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, Dependencies{
		Logger:  logger,
		Engine:  engine,
		Store:   store,
		Tokens:  jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Metrics: m,
		Limiter: middlewarectx.NewUserLimiter(cfg.RateLimit, cfg.RateBurst, middlewarectx.WithIdleTTL(cfg.RateIdleTTL)),
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

func (a *App) openStore(cfg *config.Config) (Store, error) {
	if cfg.StorageConnectionString == MemoryStorage {
		a.logger.Warn("using in-memory record store, data is lost on restart")
		return memory.New(), nil
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	if err = repository.CheckDatabaseReady(db); err != nil {
		return nil, err
	}
	return db, nil
}

func (a *App) openPublisher(cfg *config.Config) (quota.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		a.logger.Info("rabbitmq_url is empty, usage events are not published")
		return nil, nil
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)

	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.GetUsageQueues())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, ch.Close)

	a.watchChannel(ch)
	return events.NewPublisher(ch, cfg.Exchange), nil
}

// watchChannel логирует закрытие канала брокером.
func (a *App) watchChannel(ch *amqp.Channel) {
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closed; ok && err != nil {
			a.logger.Error("rabbitmq channel closed", sl.Err(err))
		}
	}()
}

func (a *App) openLocker(ctx context.Context, cfg *config.Config) (quota.Locker, error) {
	if !cfg.UserLock {
		return nil, nil
	}

	db, err := lock.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return lock.New(db, cfg.LockTTL, a.logger), nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	if a.scheduler != nil {
		go a.scheduler.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

// close освобождает ресурсы в обратном порядке открытия.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to release resource", sl.Err(err))
		}
	}
	a.closers = nil
}
