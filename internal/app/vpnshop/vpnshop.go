// Package vpnshop собирает основной сервис витрины: хранилище, кеш,
// брокер, бизнес-сервисы и HTTP-сервер.
package vpnshop

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpnshop-bot/internal/cache"
	"github.com/magabrotheeeer/vpnshop-bot/internal/catalog"
	"github.com/magabrotheeeer/vpnshop-bot/internal/config"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/userlock"
	"github.com/magabrotheeeer/vpnshop-bot/internal/localization"
	"github.com/magabrotheeeer/vpnshop-bot/internal/migrations"
	entitlementservice "github.com/magabrotheeeer/vpnshop-bot/internal/services/entitlement"
	navigationservice "github.com/magabrotheeeer/vpnshop-bot/internal/services/navigation"
	paymentservice "github.com/magabrotheeeer/vpnshop-bot/internal/services/payment"
	"github.com/magabrotheeeer/vpnshop-bot/internal/storage"
)

// App — собранный сервис витрины.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	rabbit *amqp.Connection
	ch     *amqp.Channel
}

// New собирает приложение из конфигурации.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}
	sessionStore := cache.NewSessionStore(cacheRedis)

	conn, err := rabbitmq.Connect(cfg.AddressRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPaymentQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch, rabbitmq.PaymentsExchange)

	loc, err := localization.Load(cfg.LocalesPath, cfg.Shop.DefaultLanguage)
	if err != nil {
		return nil, err
	}
	cat := catalog.New()

	// Один набор замков на все записи прав одного пользователя:
	// выдача пробного периода и покупки не должны гоняться между собой.
	locks := userlock.New()
	entitlementService := entitlementservice.New(db, locks, cfg.Shop, logger)
	paymentService := paymentservice.New(db, entitlementService, cat, publisher, locks, cfg.Gateway, logger)
	navigationService := navigationservice.New(db, sessionStore, entitlementService,
		paymentService, cat, loc, cfg.Shop, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, navigationService, paymentService, db, cfg.Gateway.WebhookSecret)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		rabbit: conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
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
		if closeErr := a.ch.Close(); closeErr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", closeErr))
		}
		if closeErr := a.rabbit.Close(); closeErr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", closeErr))
		}
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close database", slog.Any("err", closeErr))
		}
		return err
	}
}
