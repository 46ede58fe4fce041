package models

// ScreenState перечисляет экраны диалога с пользователем.
type ScreenState string

// Состояния навигации.
const (
	StateLanguagePick      ScreenState = "language_pick"
	StateMainMenu          ScreenState = "main_menu"
	StatePlanList          ScreenState = "plan_list"
	StateDurationList      ScreenState = "duration_list"
	StatePaymentMethodList ScreenState = "payment_method_list"
	StateTrialResult       ScreenState = "trial_result"
	StatePaymentResult     ScreenState = "payment_result"
	StateAccountView       ScreenState = "account_view"
	StateInfo              ScreenState = "info"
	StateInvoice           ScreenState = "invoice"
)

// Option описывает одну кнопку экрана: подпись и токен действия,
// который транспорт вернёт при нажатии.
type Option struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Screen — результат одного шага навигации: текст сообщения и набор
// доступных действий. Invoice заполняется только при переходе к оплате
// через платёжный шлюз.
type Screen struct {
	State   ScreenState `json:"state"`
	Text    string      `json:"text"`
	Options [][]Option  `json:"options"`
	Invoice *Invoice    `json:"invoice,omitempty"`
}

// Invoice описывает счёт, который транспорт должен выставить пользователю
// перед асинхронным подтверждением оплаты.
type Invoice struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Payload     string  `json:"payload"`
	Currency    string  `json:"currency"`
	Amount      float64 `json:"amount"`
}
