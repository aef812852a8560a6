// Package subscriptionentitlements собирает приложение: хранилище,
// миграции, кэш, брокер событий, сервисы и HTTP-сервер.
package subscriptionentitlements

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-entitlements/internal/cache"
	"github.com/magabrotheeeer/subscription-entitlements/internal/config"
	"github.com/magabrotheeeer/subscription-entitlements/internal/events"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-entitlements/internal/migrations"
	"github.com/magabrotheeeer/subscription-entitlements/internal/rabbitmq"
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/catalog"
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/entitlement"
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/scheduler"
	"github.com/magabrotheeeer/subscription-entitlements/internal/services/subscription"
	"github.com/magabrotheeeer/subscription-entitlements/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и подключения к внешним системам.
type App struct {
	server       *http.Server
	logger       *slog.Logger
	storage      *repository.Storage
	amqp         *amqp.Connection
	scheduler    *scheduler.Service
	scanInterval time.Duration
}

// New создает приложение: подключает хранилище, прогоняет миграции,
// поднимает кэш и брокер, собирает сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	storage, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(storage.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.AddressRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetEventQueues())
	if err != nil {
		return nil, err
	}
	eventSink := events.New(ch, logger)

	clk := clock.System()
	catalogService := catalog.New(storage, cacheRedis, logger)
	subscriptionService := subscription.New(storage, storage, cacheRedis, eventSink, clk, logger)
	entitlementService := entitlement.New(storage, storage, storage, eventSink, clk, logger)
	schedulerService := scheduler.New(subscriptionService, eventSink, logger, cfg.ReminderWindow)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, catalogService, subscriptionService, entitlementService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:       srv,
		logger:       logger,
		storage:      storage,
		amqp:         conn,
		scheduler:    schedulerService,
		scanInterval: cfg.ScanInterval,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	go a.scheduler.Run(ctx, a.scanInterval)

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
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.amqp.Close(); cerr != nil {
			a.logger.Error("failed to close AMQP connection", slog.Any("err", cerr))
		}
		if cerr := a.storage.DB.Close(); cerr != nil {
			a.logger.Error("failed to close database", slog.Any("err", cerr))
		}
		return err
	}
}
