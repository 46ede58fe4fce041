package vpnshop

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/vpnshop-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/vpnshop-bot/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/vpnshop-bot/internal/http/handlers/payment/precheckout"
	"github.com/magabrotheeeer/vpnshop-bot/internal/http/handlers/session/action"
	"github.com/magabrotheeeer/vpnshop-bot/internal/http/handlers/session/history"
	"github.com/magabrotheeeer/vpnshop-bot/internal/http/middlewarectx"
	navigationservice "github.com/magabrotheeeer/vpnshop-bot/internal/services/navigation"
	paymentservice "github.com/magabrotheeeer/vpnshop-bot/internal/services/payment"
	"github.com/magabrotheeeer/vpnshop-bot/internal/storage"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger,
	navigationService *navigationservice.Service, paymentService *paymentservice.Service,
	db *storage.Storage, webhookSecret string) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/action", action.New(logger, navigationService).ServeHTTP)
			r.Get("/users/{user_id}/history", history.New(logger, db).ServeHTTP)
			r.Post("/payments/precheckout", precheckout.New(logger, paymentService).ServeHTTP)
		})

		// Webhook endpoint: авторизация по подписи тела
		r.Post("/payments/webhook", paymentwebhook.New(logger, paymentService, webhookSecret).ServeHTTP)
	})

	r.Get("/health", health.New(logger).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
