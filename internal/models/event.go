package models

import "time"

// ReceiptEvent публикуется после успешной фиксации оплаты и превращается
// в письмо-квитанцию для оператора.
type ReceiptEvent struct {
	UserID       int64     `json:"user_id"`
	PlanName     string    `json:"plan_name"`
	DurationDays int       `json:"duration_days"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Method       string    `json:"method"`
	ExternalID   string    `json:"external_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// IntegrityEvent публикуется, когда подтверждённую шлюзом оплату не
// удалось записать. Деньги списаны, права не выданы: оператор должен
// разобраться вручную.
type IntegrityEvent struct {
	UserID     int64     `json:"user_id"`
	ExternalID string    `json:"external_id"`
	Payload    string    `json:"payload"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
