package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
)

// pendingTTL ограничивает жизнь контекста регистрации: если пользователь
// так и не выбрал язык, реферальная ссылка сгорает.
const pendingTTL = 24 * time.Hour

// SessionStore хранит контекст незавершённой регистрации: реферальную
// ссылку, зафиксированную на первом контакте и потребляемую ровно один
// раз при создании пользователя.
type SessionStore struct {
	cache *Cache
}

// NewSessionStore создает хранилище сессий поверх кеша.
func NewSessionStore(cache *Cache) *SessionStore {
	return &SessionStore{cache: cache}
}

func pendingKey(userID int64) string {
	return fmt.Sprintf("pending_registration:%d", userID)
}

// SavePendingRegistration запоминает контекст первого контакта.
func (s *SessionStore) SavePendingRegistration(ctx context.Context, userID int64, reg models.PendingRegistration) error {
	return s.cache.Set(ctx, pendingKey(userID), reg, pendingTTL)
}

// TakePendingRegistration возвращает контекст регистрации и сразу
// удаляет его, чтобы он не был использован повторно.
func (s *SessionStore) TakePendingRegistration(ctx context.Context, userID int64) (*models.PendingRegistration, error) {
	var reg models.PendingRegistration
	found, err := s.cache.Get(ctx, pendingKey(userID), &reg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if err := s.cache.Invalidate(ctx, pendingKey(userID)); err != nil {
		return nil, err
	}
	return &reg, nil
}
