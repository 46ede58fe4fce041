// Package history реализует HTTP-обработчик истории пользователя:
// выданные подписки и платежи с пагинацией.
package history

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpnshop-bot/internal/http/response"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
)

// Service описывает методы хранилища, нужные истории.
type Service interface {
	ListSubscriptions(ctx context.Context, userID int64, limit, offset int) ([]*models.Subscription, error)
	ListPayments(ctx context.Context, userID int64, limit, offset int) ([]*models.Payment, error)
	CountPayments(ctx context.Context, userID int64) (int, error)
}

// Handler управляет HTTP-запросами истории пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.history"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || userID <= 0 {
		log.Error("invalid user id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	subs, err := h.service.ListSubscriptions(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list history"))
		return
	}
	pays, err := h.service.ListPayments(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list history"))
		return
	}
	total, err := h.service.CountPayments(r.Context(), userID)
	if err != nil {
		log.Error("failed to count payments", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list history"))
		return
	}

	log.Info("history listed",
		slog.Int64("user_id", userID),
		slog.Int("subscriptions", len(subs)),
		slog.Int("payments", len(pays)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscriptions":  subs,
		"payments":       pays,
		"payments_total": total,
	}))
}
