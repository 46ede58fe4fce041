package entitlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpnshop-bot/internal/config"
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

func (m *RepoMock) GrantTrial(ctx context.Context, userID int64, expiry time.Time, sub models.Subscription) error {
	return m.Called(ctx, userID, expiry, sub).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestService(repo *RepoMock, now time.Time) *Service {
	svc := New(repo, userlock.New(), config.Shop{TrialDays: 3, ReferredTrialDays: 7}, newNoopLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func TestService_GrantTrial(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	referrerID := int64(42)

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		wantDays   int
		wantErr    error
	}{
		{
			name: "Успешная активация без реферала",
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, int64(100)).
					Return(&models.User{ID: 100}, nil)
				r.On("GrantTrial", mock.Anything, int64(100), now.AddDate(0, 0, 3), mock.Anything).
					Return(nil)
			},
			wantDays: 3,
		},
		{
			name: "Увеличенный период для пришедшего по ссылке",
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, int64(100)).
					Return(&models.User{ID: 100, ReferrerID: &referrerID}, nil)
				r.On("GrantTrial", mock.Anything, int64(100), now.AddDate(0, 0, 7), mock.Anything).
					Return(nil)
			},
			wantDays: 7,
		},
		{
			name: "Повторная активация отклоняется",
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, int64(100)).
					Return(&models.User{ID: 100, IsTrialUsed: true}, nil)
			},
			wantErr: ErrAlreadyGranted,
		},
		{
			name: "Гонка на уровне хранилища транслируется в ErrAlreadyGranted",
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, int64(100)).
					Return(&models.User{ID: 100}, nil)
				r.On("GrantTrial", mock.Anything, int64(100), mock.Anything, mock.Anything).
					Return(storage.ErrTrialAlreadyUsed)
			},
			wantErr: ErrAlreadyGranted,
		},
		{
			name: "Ошибка хранилища пробрасывается",
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, int64(100)).
					Return(nil, errors.New("connection refused"))
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)
			svc := newTestService(repo, now)

			sub, err := svc.GrantTrial(context.Background(), 100)
			if tt.wantDays > 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.wantDays, sub.DurationDays)
				assert.Equal(t, "Trial", sub.PlanName)
				assert.Equal(t, float64(0), sub.Price)
				assert.Equal(t, "vless://trial-100@demo.server:443", sub.ConfigURL)
			} else {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_ExtendedEnd(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 10)
	past := now.AddDate(0, 0, -5)

	tests := []struct {
		name    string
		current *time.Time
		days    int
		want    time.Time
	}{
		{
			name:    "Без подписки отсчёт от текущего момента",
			current: nil,
			days:    30,
			want:    now.AddDate(0, 0, 30),
		},
		{
			name:    "Активная подписка продлевается от даты окончания",
			current: &future,
			days:    30,
			want:    future.AddDate(0, 0, 30),
		},
		{
			name:    "Истёкшая подписка не отнимает дни",
			current: &past,
			days:    30,
			want:    now.AddDate(0, 0, 30),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(new(RepoMock), now)
			got := svc.ExtendedEnd(tt.current, tt.days)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_StatusOf(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	active := now.Add(49 * 24 * time.Hour).Add(12 * time.Hour)
	expired := now.Add(-time.Hour)
	exact := now

	tests := []struct {
		name         string
		end          *time.Time
		wantKind     StatusKind
		wantDaysLeft int
	}{
		{
			name:     "Подписки никогда не было",
			end:      nil,
			wantKind: StatusNone,
		},
		{
			name:     "Подписка истекла",
			end:      &expired,
			wantKind: StatusExpired,
		},
		{
			name:         "Дата окончания равна текущему моменту",
			end:          &exact,
			wantKind:     StatusActive,
			wantDaysLeft: 0,
		},
		{
			name:         "Активная подписка, остаток округляется вниз",
			end:          &active,
			wantKind:     StatusActive,
			wantDaysLeft: 49,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(new(RepoMock), now)
			got := svc.StatusOf(&models.User{ID: 1, SubscriptionEnd: tt.end})
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantDaysLeft, got.DaysLeft)
		})
	}
}

func TestService_GrantTrial_Concurrent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := new(RepoMock)

	// Оба запроса видят невзведённый флаг, хранилище пропускает только
	// первый: так работает условие is_trial_used = FALSE в UPDATE.
	repo.On("GetUser", mock.Anything, int64(100)).
		Return(&models.User{ID: 100}, nil)
	repo.On("GrantTrial", mock.Anything, int64(100), mock.Anything, mock.Anything).
		Return(nil).Once()
	repo.On("GrantTrial", mock.Anything, int64(100), mock.Anything, mock.Anything).
		Return(storage.ErrTrialAlreadyUsed).Once()

	svc := newTestService(repo, now)

	results := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := svc.GrantTrial(context.Background(), 100)
			results <- err
		}()
	}

	var okCount, deniedCount int
	for range 2 {
		err := <-results
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, ErrAlreadyGranted):
			deniedCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, deniedCount)
}
