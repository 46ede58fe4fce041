package models

import "time"

// Статусы платежа в таблице payments.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Payment представляет платёж пользователя. Записи только добавляются.
// ExternalID заполняется только для платёжного шлюза, для демо-оплат
// платёжная запись не создаётся вовсе.
type Payment struct {
	ID            int       // Идентификатор записи
	UserID        int64     // Плательщик
	Amount        float64   // Сумма платежа
	Currency      string    // Валюта
	PaymentMethod string    // Способ оплаты
	ExternalID    *string   // Ссылка на платёж во внешнем шлюзе
	Status        string    // pending | completed | failed
	CreatedAt     time.Time // Момент создания записи
}
