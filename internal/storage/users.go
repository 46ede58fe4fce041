package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
)

// GetUser возвращает пользователя по идентификатору.
func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, username, first_name, language_code, referrer_id,
	              subscription_end, is_trial_used, is_blocked, total_paid, created_at
	          FROM users WHERE user_id = $1`
	row := s.DB.QueryRowContext(ctx, query, userID)

	var result models.User
	if err := row.Scan(&result.ID, &result.Username, &result.FirstName, &result.LanguageCode,
		&result.ReferrerID, &result.SubscriptionEnd, &result.IsTrialUsed, &result.IsBlocked,
		&result.TotalPaid, &result.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// CreateUser регистрирует нового пользователя. Повторная регистрация
// существующего идентификатора не считается ошибкой и ничего не меняет.
func (s *Storage) CreateUser(ctx context.Context, user models.User) error {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (user_id, username, first_name, language_code, referrer_id)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (user_id) DO NOTHING`
	_, err := s.DB.ExecContext(ctx, query,
		user.ID, user.Username, user.FirstName, user.LanguageCode, user.ReferrerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetLanguage обновляет язык интерфейса пользователя.
func (s *Storage) SetLanguage(ctx context.Context, userID int64, language string) error {
	const op = "storage.SetLanguage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET language_code = $1 WHERE user_id = $2`
	result, err := s.DB.ExecContext(ctx, query, language, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// CountUsers возвращает общее количество зарегистрированных пользователей.
func (s *Storage) CountUsers(ctx context.Context) (int, error) {
	const op = "storage.CountUsers"

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// CountReferrals подсчитывает пользователей, пришедших по ссылке userID.
func (s *Storage) CountReferrals(ctx context.Context, userID int64) (int, error) {
	const op = "storage.CountReferrals"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	query := `SELECT COUNT(*) FROM users WHERE referrer_id = $1`
	if err := s.DB.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
