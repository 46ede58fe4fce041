// Package payment реализует приём оплаты: синхронный демо-путь и
// асинхронный путь через платёжный шлюз со счётом и подтверждением.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpnshop-bot/internal/catalog"
	"github.com/magabrotheeeer/vpnshop-bot/internal/config"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/userlock"
	"github.com/magabrotheeeer/vpnshop-bot/internal/metrics"
	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
	"github.com/magabrotheeeer/vpnshop-bot/internal/services/entitlement"
	"github.com/magabrotheeeer/vpnshop-bot/internal/storage"
)

// ErrPaymentIntegrity возвращается, когда подтверждённую шлюзом оплату
// не удалось зафиксировать в хранилище. Запись откатывается целиком,
// частично выданных прав не бывает.
var ErrPaymentIntegrity = errors.New("payment could not be recorded")

// ErrInvalidPayload возвращается для нечитаемой полезной нагрузки счёта.
var ErrInvalidPayload = errors.New("invalid invoice payload")

// Repository определяет методы хранилища, нужные приёму оплаты.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	ApplyPurchase(ctx context.Context, userID int64, newEnd time.Time,
		price float64, sub models.Subscription, pay *models.Payment) error
}

// Entitlements вычисляет новую дату окончания подписки.
type Entitlements interface {
	ExtendedEnd(current *time.Time, days int) time.Time
}

// EventPublisher публикует платёжные события.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Service реализует бизнес-логику приёма оплаты.
type Service struct {
	repo      Repository
	ent       Entitlements
	catalog   *catalog.Catalog
	publisher EventPublisher
	locks     *userlock.Set
	gateway   config.Gateway
	log       *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// New создает новый экземпляр Service. Набор замков общий с сервисом
// прав доступа: все изменения подписки одного пользователя
// сериализуются одним мьютексом.
func New(repo Repository, ent Entitlements, cat *catalog.Catalog,
	publisher EventPublisher, locks *userlock.Set, gateway config.Gateway, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		ent:       ent,
		catalog:   cat,
		publisher: publisher,
		locks:     locks,
		gateway:   gateway,
		log:       log,
		now:       time.Now,
	}
}

// CompleteDemo завершает демонстрационную оплату синхронно: подписка
// продлевается сразу, запись платежа не создаётся. Дата окончания
// перечитывается под замком пользователя: переданная копия могла
// устареть за время диалога.
func (s *Service) CompleteDemo(ctx context.Context, user *models.User,
	planIndex, durationDays int, method string) (*models.Subscription, error) {
	const op = "payment.CompleteDemo"

	plan, price, err := s.catalog.Price(planIndex, durationDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	fresh, err := s.repo.GetUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newEnd := s.ent.ExtendedEnd(fresh.SubscriptionEnd, durationDays)
	sub := models.Subscription{
		UserID:        user.ID,
		PlanName:      plan.Name,
		Devices:       plan.Devices,
		DurationDays:  durationDays,
		Price:         price,
		Currency:      s.gateway.Currency,
		PaymentMethod: method,
		StartedAt:     s.now(),
		ExpiresAt:     newEnd,
		ConfigURL:     entitlement.ConfigURL(entitlement.ConfigClassPaid, user.ID),
		IsActive:      true,
	}

	if err := s.repo.ApplyPurchase(ctx, user.ID, newEnd, price, sub, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.PaymentsCompleted.WithLabelValues(method).Inc()
	s.log.Info("demo payment completed",
		slog.Int64("user_id", user.ID),
		slog.String("plan", plan.Name),
		slog.String("method", method))
	return &sub, nil
}

// Invoice собирает счёт для платёжного шлюза. Полезная нагрузка кодирует
// выбор пользователя и вернётся обратно в подтверждении.
func (s *Service) Invoice(userID int64, planIndex, durationDays int) (*models.Invoice, error) {
	const op = "payment.Invoice"

	plan, price, err := s.catalog.Price(planIndex, durationDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	invoice := &models.Invoice{
		ID:          uuid.NewString(),
		Title:       plan.Name,
		Description: fmt.Sprintf("%s, %d days, %d devices", plan.Name, durationDays, plan.Devices),
		Payload:     fmt.Sprintf("plan:%d:dur:%d", planIndex, durationDays),
		Currency:    s.gateway.Currency,
		Amount:      price,
	}
	s.log.Info("invoice created",
		slog.Int64("user_id", userID),
		slog.String("invoice_id", invoice.ID))
	return invoice, nil
}

// Precheckout отвечает на предпроверку шлюза. Ответ всегда положительный
// и немедленный: окончательная проверка происходит при подтверждении.
func (s *Service) Precheckout(userID int64, payload string) bool {
	s.log.Info("precheckout approved",
		slog.Int64("user_id", userID),
		slog.String("payload", payload))
	return true
}

// CompleteGateway фиксирует подтверждённую шлюзом оплату: подписка и
// запись платежа добавляются одной транзакцией. Если запись не удалась,
// публикуется событие для ручного разбора и возвращается
// ErrPaymentIntegrity.
func (s *Service) CompleteGateway(ctx context.Context, userID int64,
	payload, externalID string) (*models.Subscription, error) {
	const op = "payment.CompleteGateway"

	planIndex, durationDays, err := decodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan, price, err := s.catalog.Price(planIndex, durationDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	newEnd := s.ent.ExtendedEnd(user.SubscriptionEnd, durationDays)
	sub := models.Subscription{
		UserID:        userID,
		PlanName:      plan.Name,
		Devices:       plan.Devices,
		DurationDays:  durationDays,
		Price:         price,
		Currency:      s.gateway.Currency,
		PaymentMethod: "stars",
		StartedAt:     now,
		ExpiresAt:     newEnd,
		ConfigURL:     entitlement.ConfigURL(entitlement.ConfigClassSub, userID),
		IsActive:      true,
	}
	pay := &models.Payment{
		UserID:        userID,
		Amount:        price,
		Currency:      s.gateway.Currency,
		PaymentMethod: "stars",
		ExternalID:    &externalID,
		Status:        models.PaymentStatusCompleted,
	}

	if err := s.repo.ApplyPurchase(ctx, userID, newEnd, price, sub, pay); err != nil {
		if errors.Is(err, storage.ErrDuplicatePayment) {
			// Повторная доставка подтверждения: оплата уже записана,
			// продление не применяется второй раз.
			s.log.Info("gateway payment already recorded",
				slog.Int64("user_id", userID),
				slog.String("external_id", externalID))
			return &sub, nil
		}
		metrics.PaymentIntegrityFailures.Inc()
		s.log.Error("gateway payment could not be recorded",
			slog.Int64("user_id", userID),
			slog.String("external_id", externalID),
			sl.Err(err))
		s.publishEvent(rabbitmq.RoutingKeyIntegrity, models.IntegrityEvent{
			UserID:     userID,
			ExternalID: externalID,
			Payload:    payload,
			Reason:     err.Error(),
			CreatedAt:  now,
		})
		return nil, fmt.Errorf("%s: %w", op, ErrPaymentIntegrity)
	}

	metrics.PaymentsCompleted.WithLabelValues("stars").Inc()
	s.publishEvent(rabbitmq.RoutingKeyReceipt, models.ReceiptEvent{
		UserID:       userID,
		PlanName:     plan.Name,
		DurationDays: durationDays,
		Amount:       price,
		Currency:     s.gateway.Currency,
		Method:       "stars",
		ExternalID:   externalID,
		ExpiresAt:    newEnd,
		CreatedAt:    now,
	})
	s.log.Info("gateway payment completed",
		slog.Int64("user_id", userID),
		slog.String("external_id", externalID))
	return &sub, nil
}

// publishEvent отправляет событие, не прерывая основной путь: брокер
// может быть недоступен, оплата от этого не ломается.
func (s *Service) publishEvent(routingKey string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(routingKey, event); err != nil {
		s.log.Error("failed to publish payment event",
			slog.String("routing_key", routingKey), sl.Err(err))
	}
}

func decodePayload(payload string) (int, int, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 4 || parts[0] != "plan" || parts[2] != "dur" {
		return 0, 0, ErrInvalidPayload
	}
	planIndex, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, ErrInvalidPayload
	}
	durationDays, err := strconv.Atoi(parts[3])
	if err != nil {
		return 0, 0, ErrInvalidPayload
	}
	return planIndex, durationDays, nil
}
