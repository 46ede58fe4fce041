// Package models содержит доменные структуры магазина подписок:
// пользователя, подписку, платёж и экран диалога.
// Структуры используются в бизнес-логике и при работе с хранилищем.
package models

import "time"

// User представляет пользователя магазина.
// SubscriptionEnd может быть nil — это означает, что подписка
// ни разу не оформлялась. Флаг IsTrialUsed выставляется один раз
// и обратно не сбрасывается.
type User struct {
	ID              int64      // Идентификатор пользователя во внешнем транспорте
	Username        string     // Логин пользователя (может быть пустым)
	FirstName       string     // Отображаемое имя
	LanguageCode    string     // Выбранный язык интерфейса
	ReferrerID      *int64     // ID пригласившего пользователя, если есть
	SubscriptionEnd *time.Time // Дата окончания действующей подписки
	IsTrialUsed     bool       // Признак использованного пробного периода
	IsBlocked       bool       // Признак блокировки пользователя
	TotalPaid       float64    // Сумма всех оплат пользователя
	CreatedAt       time.Time  // Дата регистрации
}

// PendingRegistration хранит контекст первого контакта до выбора языка:
// реферальная ссылка фиксируется на входе и потребляется ровно один раз
// при создании пользователя.
type PendingRegistration struct {
	ReferrerID int64 `json:"referrer_id"`
}
