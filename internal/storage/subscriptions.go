package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
)

// GrantTrial выдаёт пробный период одной транзакцией: взводит флаг
// is_trial_used, выставляет дату окончания и добавляет запись подписки.
// Обновление защищено условием is_trial_used = FALSE, поэтому даже два
// конкурентных запроса не смогут выдать пробный период дважды.
func (s *Storage) GrantTrial(ctx context.Context, userID int64, expiry time.Time, sub models.Subscription) error {
	const op = "storage.GrantTrial"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE users SET subscription_end = $1, is_trial_used = TRUE
	          WHERE user_id = $2 AND is_trial_used = FALSE`
	result, err := tx.ExecContext(ctx, query, expiry, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrTrialAlreadyUsed)
	}

	if err := appendSubscription(ctx, tx, sub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ApplyPurchase фиксирует покупку одной транзакцией: сдвигает дату
// окончания подписки, увеличивает total_paid, добавляет запись подписки
// и, для платёжного шлюза, запись платежа. Частичная фиксация невозможна:
// любая ошибка откатывает всю единицу целиком.
func (s *Storage) ApplyPurchase(ctx context.Context, userID int64, newEnd time.Time,
	price float64, sub models.Subscription, pay *models.Payment) error {
	const op = "storage.ApplyPurchase"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE users SET subscription_end = $1, total_paid = total_paid + $2
	          WHERE user_id = $3`
	result, err := tx.ExecContext(ctx, query, newEnd, price, userID)
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

	if err := appendSubscription(ctx, tx, sub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if pay != nil {
		appendPayment := `INSERT INTO payments (user_id, amount, currency, payment_method, payment_id, status)
		                  VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.ExecContext(ctx, appendPayment,
			pay.UserID, pay.Amount, pay.Currency, pay.PaymentMethod, pay.ExternalID, pay.Status); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%s: %w", op, ErrDuplicatePayment)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func appendSubscription(ctx context.Context, tx *sql.Tx, sub models.Subscription) error {
	query := `INSERT INTO subscriptions (user_id, plan_name, devices, duration_days, price,
	              currency, payment_method, started_at, expires_at, config_url, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := tx.ExecContext(ctx, query,
		sub.UserID, sub.PlanName, sub.Devices, sub.DurationDays, sub.Price,
		sub.Currency, sub.PaymentMethod, sub.StartedAt, sub.ExpiresAt, sub.ConfigURL, sub.IsActive)
	return err
}

// ListSubscriptions возвращает историю подписок пользователя с пагинацией.
func (s *Storage) ListSubscriptions(ctx context.Context, userID int64, limit, offset int) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, plan_name, devices, duration_days, price, currency,
	              payment_method, started_at, expires_at, config_url, is_active
	          FROM subscriptions
	          WHERE user_id = $1
	          ORDER BY id
	          LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var item models.Subscription
		if err := rows.Scan(&item.ID, &item.UserID, &item.PlanName, &item.Devices,
			&item.DurationDays, &item.Price, &item.Currency, &item.PaymentMethod,
			&item.StartedAt, &item.ExpiresAt, &item.ConfigURL, &item.IsActive); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
