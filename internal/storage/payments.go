package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
)

// ListPayments возвращает историю платежей пользователя с пагинацией.
func (s *Storage) ListPayments(ctx context.Context, userID int64, limit, offset int) ([]*models.Payment, error) {
	const op = "storage.ListPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, amount, currency, payment_method, payment_id, status, created_at
	          FROM payments
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

	var result []*models.Payment
	for rows.Next() {
		var item models.Payment
		if err := rows.Scan(&item.ID, &item.UserID, &item.Amount, &item.Currency,
			&item.PaymentMethod, &item.ExternalID, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountPayments возвращает количество платежей пользователя.
func (s *Storage) CountPayments(ctx context.Context, userID int64) (int, error) {
	const op = "storage.CountPayments"

	var count int
	query := `SELECT COUNT(*) FROM payments WHERE user_id = $1`
	if err := s.DB.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
