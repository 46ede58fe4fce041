// Package storage реализует хранилище данных на основе PostgreSQL
// для магазина подписок: пользователи, история подписок и платежей.
// Таблицы subscriptions и payments только пополняются, записи в них
// после создания не изменяются.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrUserNotFound возвращается, когда пользователь отсутствует в базе.
var ErrUserNotFound = errors.New("user not found")

// ErrTrialAlreadyUsed возвращается при попытке повторно выдать пробный
// период: флаг is_trial_used взводится ровно один раз.
var ErrTrialAlreadyUsed = errors.New("trial already used")

// ErrDuplicatePayment возвращается при повторной записи платежа с тем же
// внешним идентификатором: шлюз может доставить подтверждение дважды.
var ErrDuplicatePayment = errors.New("payment already recorded")

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'users'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table users missing or query error: %w", err)
	}
	return nil
}
