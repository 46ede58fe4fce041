// Package action реализует HTTP-обработчик шага диалога: принимает токен
// действия от транспорта и возвращает следующий экран.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpnshop-bot/internal/catalog"
	"github.com/magabrotheeeer/vpnshop-bot/internal/http/response"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
	"github.com/magabrotheeeer/vpnshop-bot/internal/services/navigation"
)

// Request — один шаг диалога.
type Request struct {
	UserID    int64  `json:"user_id" validate:"required"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	Action    string `json:"action" validate:"required"`
}

// Service описывает интерфейс конечного автомата навигации.
type Service interface {
	Route(ctx context.Context, actor navigation.Actor, action string) (*models.Screen, error)
}

// Handler управляет HTTP-запросами шагов диалога.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.action"
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

	actor := navigation.Actor{
		UserID:    req.UserID,
		Username:  req.Username,
		FirstName: req.FirstName,
	}
	screen, err := h.service.Route(r.Context(), actor, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, navigation.ErrUnroutableAction):
			log.Warn("unroutable action", slog.String("action", req.Action))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("unroutable action"))
		case errors.Is(err, catalog.ErrInvalidSelection):
			log.Warn("invalid selection", slog.String("action", req.Action))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("invalid selection"))
		default:
			log.Error("failed to route action", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not process action"))
		}
		return
	}

	log.Info("action routed",
		slog.Int64("user_id", req.UserID),
		slog.String("action", req.Action),
		slog.String("state", string(screen.State)))
	render.JSON(w, r, response.OKWithData(screen))
}
