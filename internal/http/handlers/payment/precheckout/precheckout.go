// Package precheckout отвечает на предпроверку платёжного шлюза.
package precheckout

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpnshop-bot/internal/http/response"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/sl"
)

// Request — запрос предпроверки от шлюза.
type Request struct {
	UserID  int64  `json:"user_id" validate:"required"`
	Payload string `json:"payload" validate:"required"`
}

// Service описывает интерфейс предпроверки оплаты.
type Service interface {
	Precheckout(userID int64, payload string) bool
}

// Handler управляет запросами предпроверки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.precheckout"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	ok := h.service.Precheckout(req.UserID, req.Payload)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"approved": ok,
	}))
}
