package models

import "time"

// Subscription представляет одну выдачу подписки пользователю:
// покупку или активацию пробного периода. Записи только добавляются
// и после создания не изменяются (история для аудита).
type Subscription struct {
	ID            int       // Идентификатор записи
	UserID        int64     // Владелец подписки
	PlanName      string    // Название тарифа
	Devices       int       // Количество устройств по тарифу
	DurationDays  int       // Длительность в днях
	Price         float64   // Цена выдачи (0 для пробного периода)
	Currency      string    // Валюта
	PaymentMethod string    // Способ оплаты: trial, card, crypto, stars
	StartedAt     time.Time // Момент выдачи
	ExpiresAt     time.Time // Рассчитанная дата окончания
	ConfigURL     string    // Выданный конфиг (заглушка вместо реального креденшла)
	IsActive      bool      // Признак актуальности записи
}
