// Package paymentwebhook принимает подтверждения оплаты от платёжного
// шлюза. Подпись тела проверяется до разбора.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
	"github.com/magabrotheeeer/vpnshop-bot/internal/services/payment"
)

// Service описывает интерфейс фиксации оплаты.
type Service interface {
	CompleteGateway(ctx context.Context, userID int64, payload, externalID string) (*models.Subscription, error)
}

// Handler управляет запросами подтверждения оплаты.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload — тело уведомления платёжного шлюза.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"` // внешний идентификатор платежа
		Status string `json:"status"`
		Amount struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"amount"`
		InvoicePayload string `json:"invoice_payload"`
		UserID         int64  `json:"user_id"`
	} `json:"object"`
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(h.webhookSecret, body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	const paymentSucceeded = "payment.succeeded"

	switch strings.ToLower(payload.Event) {
	case paymentSucceeded:
		_, err := h.service.CompleteGateway(r.Context(),
			payload.Object.UserID, payload.Object.InvoicePayload, payload.Object.ID)
		if err != nil {
			if errors.Is(err, payment.ErrInvalidPayload) {
				log.Error("unreadable invoice payload", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			// Шлюз повторит уведомление; повторную доставку отсекает
			// уникальный индекс по внешнему идентификатору платежа.
			log.Error("failed to complete gateway payment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	default:
		log.Info("ignored webhook event", slog.String("event", payload.Event))
	}

	log.Info("webhook processed successfully",
		slog.String("event", payload.Event),
		slog.String("payment_id", payload.Object.ID))
	w.WriteHeader(http.StatusOK)
}
