package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя
func (f *TestDataFactory) CreateUser(t *testing.T, userID int64, username, firstName, language string, referrerID *int64) {
	_, err := f.storage.DB.Exec(`INSERT INTO users (user_id, username, first_name, language_code, referrer_id)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, username, firstName, language, referrerID)
	require.NoError(t, err)
}

// CreateUserWithSubscription создает пользователя с действующей подпиской
func (f *TestDataFactory) CreateUserWithSubscription(t *testing.T, userID int64, username, firstName, language string,
	subscriptionEnd time.Time, trialUsed bool, totalPaid float64) {
	_, err := f.storage.DB.Exec(`INSERT INTO users
		(user_id, username, first_name, language_code, subscription_end, is_trial_used, total_paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		userID, username, firstName, language, subscriptionEnd, trialUsed, totalPaid)
	require.NoError(t, err)
}

// CountRows возвращает количество строк таблицы для пользователя
func (f *TestDataFactory) CountRows(t *testing.T, table string, userID int64) int {
	var count int
	err := f.storage.DB.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE user_id = $1`, userID).Scan(&count)
	require.NoError(t, err)
	return count
}

// GetTestSubscriptionData возвращает стандартные тестовые данные подписки
func GetTestSubscriptionData(userID int64) models.Subscription {
	startedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	return models.Subscription{
		UserID:        userID,
		PlanName:      "Basic",
		Devices:       1,
		DurationDays:  30,
		Price:         5,
		Currency:      "USD",
		PaymentMethod: "card",
		StartedAt:     startedAt,
		ExpiresAt:     startedAt.AddDate(0, 0, 30),
		ConfigURL:     "vless://sub-1@demo.server:443",
		IsActive:      true,
	}
}
