// Package entitlement содержит бизнес-логику выдачи пробного периода,
// продления подписки и вычисления её статуса.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpnshop-bot/internal/config"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/userlock"
	"github.com/magabrotheeeer/vpnshop-bot/internal/metrics"
	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
	"github.com/magabrotheeeer/vpnshop-bot/internal/storage"
)

// ErrAlreadyGranted возвращается при повторной попытке активировать
// пробный период. Флаг is_trial_used взводится ровно один раз и
// обратно не сбрасывается.
var ErrAlreadyGranted = errors.New("trial already granted")

// Классы конфигурации: из какого сценария выдан доступ.
const (
	ConfigClassTrial = "trial"
	ConfigClassSub   = "sub"
	ConfigClassPaid  = "paid"
)

// StatusKind — взаимоисключающие состояния подписки пользователя.
type StatusKind string

// Статусы подписки.
const (
	StatusNone    StatusKind = "none"
	StatusExpired StatusKind = "expired"
	StatusActive  StatusKind = "active"
)

// Status описывает текущее состояние подписки пользователя.
type Status struct {
	Kind      StatusKind
	ExpiresAt *time.Time
	DaysLeft  int
}

// UserRepository определяет методы хранилища, нужные для выдачи прав.
type UserRepository interface {
	// GetUser возвращает пользователя по идентификатору.
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	// GrantTrial выдаёт пробный период одной транзакцией.
	GrantTrial(ctx context.Context, userID int64, expiry time.Time, sub models.Subscription) error
}

// Service реализует бизнес-логику прав доступа.
type Service struct {
	repo  UserRepository
	locks *userlock.Set
	shop  config.Shop
	log   *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// New создает новый экземпляр Service. Набор замков общий для всех
// сервисов, изменяющих права одного пользователя.
func New(repo UserRepository, locks *userlock.Set, shop config.Shop, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		locks: locks,
		shop:  shop,
		log:   log,
		now:   time.Now,
	}
}

// TrialDaysFor возвращает длительность пробного периода для пользователя:
// базовую либо увеличенную, если он пришёл по реферальной ссылке.
func (s *Service) TrialDaysFor(user *models.User) int {
	if user.ReferrerID != nil {
		return s.shop.ReferredTrialDays
	}
	return s.shop.TrialDays
}

// TrialEligible сообщает, доступен ли пользователю пробный период.
// Флаг is_trial_used выставляется один раз и обратно не сбрасывается.
func (s *Service) TrialEligible(user *models.User) bool {
	return !user.IsTrialUsed
}

// GrantTrial активирует пробный период и возвращает созданную подписку.
// Конкурентные запросы одного пользователя сериализуются на уровне
// сервиса, а хранилище дополнительно защищает флаг is_trial_used.
func (s *Service) GrantTrial(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "entitlement.GrantTrial"

	unlock := s.locks.Lock(userID)
	defer unlock()

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !s.TrialEligible(user) {
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyGranted)
	}

	days := s.TrialDaysFor(user)
	now := s.now()
	expiry := now.AddDate(0, 0, days)

	sub := models.Subscription{
		UserID:        userID,
		PlanName:      "Trial",
		Devices:       1,
		DurationDays:  days,
		Price:         0,
		Currency:      "USD",
		PaymentMethod: "trial",
		StartedAt:     now,
		ExpiresAt:     expiry,
		ConfigURL:     ConfigURL(ConfigClassTrial, userID),
		IsActive:      true,
	}

	if err := s.repo.GrantTrial(ctx, userID, expiry, sub); err != nil {
		if errors.Is(err, storage.ErrTrialAlreadyUsed) {
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadyGranted)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.TrialsGranted.Inc()
	s.log.Info("trial granted",
		slog.Int64("user_id", userID),
		slog.Int("days", days))
	return &sub, nil
}

// ExtendedEnd вычисляет новую дату окончания подписки: отсчёт идёт от
// текущей даты окончания, если она в будущем, иначе от настоящего
// момента. Оплаченные дни никогда не сгорают.
func (s *Service) ExtendedEnd(current *time.Time, days int) time.Time {
	base := s.now()
	if current != nil && current.After(base) {
		base = *current
	}
	return base.AddDate(0, 0, days)
}

// StatusOf вычисляет статус подписки пользователя. Разбиение полное:
// каждый пользователь попадает ровно в одно из трёх состояний.
func (s *Service) StatusOf(user *models.User) Status {
	if user.SubscriptionEnd == nil {
		return Status{Kind: StatusNone}
	}
	now := s.now()
	end := *user.SubscriptionEnd
	if end.Before(now) {
		return Status{Kind: StatusExpired, ExpiresAt: &end}
	}
	daysLeft := int(end.Sub(now).Hours() / 24)
	return Status{Kind: StatusActive, ExpiresAt: &end, DaysLeft: daysLeft}
}

// ConfigURL собирает адрес конфигурации для выданного доступа.
func ConfigURL(class string, userID int64) string {
	return fmt.Sprintf("vless://%s-%d@demo.server:443", class, userID)
}
