package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpnshop-bot/internal/catalog"
	"github.com/magabrotheeeer/vpnshop-bot/internal/config"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/userlock"
	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
	"github.com/magabrotheeeer/vpnshop-bot/internal/storage"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) ApplyPurchase(ctx context.Context, userID int64, newEnd time.Time,
	price float64, sub models.Subscription, pay *models.Payment) error {
	return m.Called(ctx, userID, newEnd, price, sub, pay).Error(0)
}

type EntMock struct{ mock.Mock }

func (m *EntMock) ExtendedEnd(current *time.Time, days int) time.Time {
	return m.Called(current, days).Get(0).(time.Time)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(routingKey string, message any) error {
	return m.Called(routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestService(repo *RepoMock, ent *EntMock, pub *PublisherMock, now time.Time) *Service {
	svc := New(repo, ent, catalog.New(), pub, userlock.New(), config.Gateway{Currency: "USD"}, newNoopLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func TestService_CompleteDemo(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	newEnd := now.AddDate(0, 0, 30)

	tests := []struct {
		name       string
		planIndex  int
		days       int
		setupMocks func(r *RepoMock, e *EntMock)
		wantErr    error
		wantPrice  float64
	}{
		{
			name:      "Успешная демо-оплата без записи платежа",
			planIndex: 1,
			days:      30,
			setupMocks: func(r *RepoMock, e *EntMock) {
				r.On("GetUser", mock.Anything, int64(100)).Return(&models.User{ID: 100}, nil)
				e.On("ExtendedEnd", (*time.Time)(nil), 30).Return(newEnd)
				r.On("ApplyPurchase", mock.Anything, int64(100), newEnd, float64(10),
					mock.Anything, (*models.Payment)(nil)).Return(nil)
			},
			wantPrice: 10,
		},
		{
			name:       "Несуществующий тариф",
			planIndex:  9,
			days:       30,
			setupMocks: func(r *RepoMock, e *EntMock) {},
			wantErr:    catalog.ErrInvalidSelection,
		},
		{
			name:       "Несуществующая длительность",
			planIndex:  0,
			days:       45,
			setupMocks: func(r *RepoMock, e *EntMock) {},
			wantErr:    catalog.ErrInvalidSelection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, ent, pub := new(RepoMock), new(EntMock), new(PublisherMock)
			tt.setupMocks(repo, ent)
			svc := newTestService(repo, ent, pub, now)

			sub, err := svc.CompleteDemo(context.Background(),
				&models.User{ID: 100}, tt.planIndex, tt.days, "card")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrice, sub.Price)
			assert.Equal(t, newEnd, sub.ExpiresAt)
			assert.Equal(t, "vless://paid-100@demo.server:443", sub.ConfigURL)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Invoice(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(new(RepoMock), new(EntMock), new(PublisherMock), now)

	invoice, err := svc.Invoice(100, 2, 180)
	require.NoError(t, err)
	assert.Equal(t, "plan:2:dur:180", invoice.Payload)
	assert.Equal(t, "Premium", invoice.Title)
	assert.Equal(t, float64(75), invoice.Amount)
	assert.NotEmpty(t, invoice.ID)

	_, err = svc.Invoice(100, 5, 30)
	assert.ErrorIs(t, err, catalog.ErrInvalidSelection)
}

func TestService_CompleteGateway(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	newEnd := now.AddDate(0, 0, 60)

	t.Run("Успешное подтверждение добавляет платёж и публикует квитанцию", func(t *testing.T) {
		repo, ent, pub := new(RepoMock), new(EntMock), new(PublisherMock)
		repo.On("GetUser", mock.Anything, int64(100)).Return(&models.User{ID: 100}, nil)
		ent.On("ExtendedEnd", (*time.Time)(nil), 60).Return(newEnd)
		repo.On("ApplyPurchase", mock.Anything, int64(100), newEnd, float64(9),
			mock.MatchedBy(func(sub models.Subscription) bool {
				return sub.PaymentMethod == "stars" && sub.ConfigURL == "vless://sub-100@demo.server:443"
			}),
			mock.MatchedBy(func(pay *models.Payment) bool {
				return pay != nil && pay.Status == models.PaymentStatusCompleted &&
					pay.ExternalID != nil && *pay.ExternalID == "ext-1"
			})).Return(nil)
		pub.On("Publish", rabbitmq.RoutingKeyReceipt, mock.Anything).Return(nil)

		svc := newTestService(repo, ent, pub, now)
		sub, err := svc.CompleteGateway(context.Background(), 100, "plan:0:dur:60", "ext-1")
		require.NoError(t, err)
		assert.Equal(t, newEnd, sub.ExpiresAt)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("Отказ хранилища транслируется в ErrPaymentIntegrity", func(t *testing.T) {
		repo, ent, pub := new(RepoMock), new(EntMock), new(PublisherMock)
		repo.On("GetUser", mock.Anything, int64(100)).Return(&models.User{ID: 100}, nil)
		ent.On("ExtendedEnd", (*time.Time)(nil), 60).Return(newEnd)
		repo.On("ApplyPurchase", mock.Anything, int64(100), newEnd, float64(9),
			mock.Anything, mock.Anything).Return(errors.New("deadlock detected"))
		pub.On("Publish", rabbitmq.RoutingKeyIntegrity, mock.MatchedBy(func(ev models.IntegrityEvent) bool {
			return ev.UserID == 100 && ev.ExternalID == "ext-1"
		})).Return(nil)

		svc := newTestService(repo, ent, pub, now)
		_, err := svc.CompleteGateway(context.Background(), 100, "plan:0:dur:60", "ext-1")
		assert.ErrorIs(t, err, ErrPaymentIntegrity)
		pub.AssertExpectations(t)
	})

	t.Run("Повторная доставка подтверждения не продлевает подписку дважды", func(t *testing.T) {
		repo, ent, pub := new(RepoMock), new(EntMock), new(PublisherMock)
		repo.On("GetUser", mock.Anything, int64(100)).Return(&models.User{ID: 100}, nil)
		ent.On("ExtendedEnd", (*time.Time)(nil), 60).Return(newEnd)
		repo.On("ApplyPurchase", mock.Anything, int64(100), newEnd, float64(9),
			mock.Anything, mock.Anything).Return(storage.ErrDuplicatePayment)

		svc := newTestService(repo, ent, pub, now)
		sub, err := svc.CompleteGateway(context.Background(), 100, "plan:0:dur:60", "ext-1")
		require.NoError(t, err)
		assert.NotNil(t, sub)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("Нечитаемая полезная нагрузка отклоняется", func(t *testing.T) {
		svc := newTestService(new(RepoMock), new(EntMock), new(PublisherMock), now)
		for _, payload := range []string{"", "plan:0", "plan:x:dur:30", "plan:0:dur:x", "sub:0:dur:30"} {
			_, err := svc.CompleteGateway(context.Background(), 100, payload, "ext-1")
			assert.ErrorIs(t, err, ErrInvalidPayload, payload)
		}
	})
}

// stackRepo хранит дату окончания в памяти: каждая запись видна
// следующему чтению, как в настоящем хранилище.
type stackRepo struct {
	mu      sync.Mutex
	end     *time.Time
	applied int
}

func (r *stackRepo) GetUser(_ context.Context, userID int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &models.User{ID: userID, SubscriptionEnd: r.end}, nil
}

func (r *stackRepo) ApplyPurchase(_ context.Context, _ int64, newEnd time.Time,
	_ float64, _ models.Subscription, _ *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.end = &newEnd
	r.applied++
	return nil
}

// stackingEnd повторяет закон продления: отсчёт от будущей даты
// окончания, иначе от текущего момента.
type stackingEnd struct{ now time.Time }

func (e stackingEnd) ExtendedEnd(current *time.Time, days int) time.Time {
	base := e.now
	if current != nil && current.After(base) {
		base = *current
	}
	return base.AddDate(0, 0, days)
}

func TestService_CompleteDemo_Concurrent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &stackRepo{}
	svc := New(repo, stackingEnd{now: now}, catalog.New(), nil,
		userlock.New(), config.Gateway{Currency: "USD"}, newNoopLogger())
	svc.now = func() time.Time { return now }

	// Оба вызова получают одну и ту же устаревшую копию пользователя,
	// как если бы два шага диалога прочитали её в начале хода.
	stale := &models.User{ID: 100}
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteDemo(context.Background(), stale, 0, 30, "card")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Оба платежа записаны, и оба срока засчитаны: 30 + 30 дней.
	assert.Equal(t, 2, repo.applied)
	require.NotNil(t, repo.end)
	assert.Equal(t, now.AddDate(0, 0, 60), *repo.end)
}
