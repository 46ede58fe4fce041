// Package navigation реализует конечный автомат витрины: принимает токен
// действия от транспорта и возвращает следующий экран диалога. Сам автомат
// не хранит состояние между запросами, каждый токен самодостаточен.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/vpnshop-bot/internal/catalog"
	"github.com/magabrotheeeer/vpnshop-bot/internal/config"
	"github.com/magabrotheeeer/vpnshop-bot/internal/localization"
	"github.com/magabrotheeeer/vpnshop-bot/internal/metrics"
	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
	"github.com/magabrotheeeer/vpnshop-bot/internal/services/entitlement"
	"github.com/magabrotheeeer/vpnshop-bot/internal/storage"
)

// ErrUnroutableAction возвращается для токена, который не подошёл ни под
// один маршрут. Текущий экран при этом не меняется.
var ErrUnroutableAction = errors.New("unroutable action")

// Методы оплаты.
const (
	MethodCard   = "card"
	MethodCrypto = "crypto"
	MethodStars  = "stars"
)

// Actor описывает отправителя действия.
type Actor struct {
	UserID    int64
	Username  string
	FirstName string
}

// UserRepository определяет методы хранилища, нужные навигации.
type UserRepository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	CreateUser(ctx context.Context, user models.User) error
	SetLanguage(ctx context.Context, userID int64, language string) error
	CountReferrals(ctx context.Context, userID int64) (int, error)
	CountUsers(ctx context.Context) (int, error)
}

// SessionStore хранит контекст незавершённой регистрации.
type SessionStore interface {
	SavePendingRegistration(ctx context.Context, userID int64, reg models.PendingRegistration) error
	TakePendingRegistration(ctx context.Context, userID int64) (*models.PendingRegistration, error)
}

// Entitlements — операции с правами доступа.
type Entitlements interface {
	GrantTrial(ctx context.Context, userID int64) (*models.Subscription, error)
	StatusOf(user *models.User) entitlement.Status
}

// Payments — операции приёма оплаты.
type Payments interface {
	CompleteDemo(ctx context.Context, user *models.User, planIndex, durationDays int, method string) (*models.Subscription, error)
	Invoice(userID int64, planIndex, durationDays int) (*models.Invoice, error)
}

// Service реализует маршрутизацию действий по экранам.
type Service struct {
	repo    UserRepository
	session SessionStore
	ent     Entitlements
	pay     Payments
	catalog *catalog.Catalog
	loc     *localization.Localizer
	shop    config.Shop
	log     *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo UserRepository, session SessionStore, ent Entitlements, pay Payments,
	cat *catalog.Catalog, loc *localization.Localizer, shop config.Shop, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		session: session,
		ent:     ent,
		pay:     pay,
		catalog: cat,
		loc:     loc,
		shop:    shop,
		log:     log,
	}
}

// Route разбирает токен действия и возвращает следующий экран.
func (s *Service) Route(ctx context.Context, actor Actor, action string) (*models.Screen, error) {
	const op = "navigation.Route"

	parts := strings.Split(action, ":")
	verb := parts[0]

	user, err := s.repo.GetUser(ctx, actor.UserID)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user != nil && user.IsBlocked {
		return s.blockedScreen(user), nil
	}

	switch verb {
	case "start":
		return s.routeStart(ctx, actor, parts, user)
	case "lang":
		if len(parts) != 2 {
			return s.unroutable(action)
		}
		return s.routeLanguage(ctx, actor, parts[1], user)
	}

	// Остальные маршруты требуют зарегистрированного пользователя.
	// Неизвестная личность начинает с выбора языка.
	if user == nil {
		return s.languageScreen(s.shop.DefaultLanguage), nil
	}

	switch verb {
	case "menu":
		return s.menuScreen(user), nil
	case "language":
		return s.languageScreen(user.LanguageCode), nil
	case "trial":
		return s.routeTrial(ctx, user)
	case "plans":
		return s.plansScreen(user, localization.KeyPlansTitle), nil
	case "plan":
		if len(parts) != 2 {
			return s.unroutable(action)
		}
		return s.routePlan(user, parts[1])
	case "dur":
		if len(parts) != 3 {
			return s.unroutable(action)
		}
		return s.routeDuration(user, parts[1], parts[2])
	case "pay":
		if len(parts) != 4 {
			return s.unroutable(action)
		}
		return s.routePayment(ctx, user, parts[1], parts[2], parts[3])
	case "account":
		return s.accountScreen(ctx, user)
	case "about":
		return s.infoScreen(user, localization.KeyAbout, nil), nil
	case "support":
		return s.infoScreen(user, localization.KeySupport,
			localization.Params{"support": s.shop.SupportUsername}), nil
	case "referral":
		return s.infoScreen(user, localization.KeyReferralInfo,
			localization.Params{"link": fmt.Sprintf("start:ref%d", user.ID)}), nil
	case "promo":
		return s.infoScreen(user, localization.KeyPromoInfo, nil), nil
	case "help":
		return s.infoScreen(user, localization.KeyHelpInfo, nil), nil
	case "admin":
		if !s.shop.IsAdmin(user.ID) {
			return s.unroutable(action)
		}
		return s.adminScreen(ctx, user)
	default:
		return s.unroutable(action)
	}
}

func (s *Service) unroutable(action string) (*models.Screen, error) {
	metrics.UnroutableActions.Inc()
	s.log.Warn("unroutable action", slog.String("action", action))
	return nil, fmt.Errorf("navigation.Route: %q: %w", action, ErrUnroutableAction)
}

// routeStart обрабатывает первый контакт. Для известного пользователя это
// возврат в главное меню, для нового — выбор языка; реферальная ссылка
// запоминается в сессии до создания пользователя.
func (s *Service) routeStart(ctx context.Context, actor Actor, parts []string, user *models.User) (*models.Screen, error) {
	const op = "navigation.routeStart"

	if user != nil {
		return s.menuScreen(user), nil
	}

	if len(parts) == 2 && strings.HasPrefix(parts[1], "ref") {
		referrerID, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "ref"), 10, 64)
		// Битую или собственную ссылку молча игнорируем.
		if err == nil && referrerID != actor.UserID {
			reg := models.PendingRegistration{ReferrerID: referrerID}
			if err := s.session.SavePendingRegistration(ctx, actor.UserID, reg); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	return s.languageScreen(s.shop.DefaultLanguage), nil
}

// routeLanguage завершает регистрацию нового пользователя или меняет язык
// существующего. Отложенная реферальная ссылка потребляется ровно здесь.
func (s *Service) routeLanguage(ctx context.Context, actor Actor, code string, user *models.User) (*models.Screen, error) {
	const op = "navigation.routeLanguage"

	if !s.loc.Has(code) {
		return nil, fmt.Errorf("%s: language %q: %w", op, code, catalog.ErrInvalidSelection)
	}

	if user != nil {
		if err := s.repo.SetLanguage(ctx, user.ID, code); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		user.LanguageCode = code
		return s.menuScreen(user), nil
	}

	pending, err := s.session.TakePendingRegistration(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newUser := models.User{
		ID:           actor.UserID,
		Username:     actor.Username,
		FirstName:    actor.FirstName,
		LanguageCode: code,
	}
	if pending != nil {
		newUser.ReferrerID = &pending.ReferrerID
	}
	if err := s.repo.CreateUser(ctx, newUser); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered",
		slog.Int64("user_id", actor.UserID),
		slog.String("language", code),
		slog.Bool("referred", pending != nil))
	return s.welcomeScreen(&newUser), nil
}

func (s *Service) routeTrial(ctx context.Context, user *models.User) (*models.Screen, error) {
	const op = "navigation.routeTrial"

	sub, err := s.ent.GrantTrial(ctx, user.ID)
	if errors.Is(err, entitlement.ErrAlreadyGranted) {
		return s.plansScreen(user, localization.KeyTrialUsed), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	text := s.loc.T(user.LanguageCode, localization.KeyTrialActivated, localization.Params{
		"days":    strconv.Itoa(sub.DurationDays),
		"expires": sub.ExpiresAt.Format("02.01.2006"),
		"config":  sub.ConfigURL,
	})
	return &models.Screen{
		State:   models.StateTrialResult,
		Text:    text,
		Options: s.backRow(user.LanguageCode),
	}, nil
}

func (s *Service) routePlan(user *models.User, rawIndex string) (*models.Screen, error) {
	const op = "navigation.routePlan"

	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, catalog.ErrInvalidSelection)
	}
	plan, err := s.catalog.Plan(index)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lang := user.LanguageCode
	var b strings.Builder
	b.WriteString(s.loc.T(lang, localization.KeyDurationTitle, localization.Params{
		"plan_name": plan.Name,
		"devices":   strconv.Itoa(plan.Devices),
	}))

	var rows [][]models.Option
	for _, days := range s.catalog.Durations() {
		price := plan.Prices[days]
		monthly := price / (float64(days) / 30)
		label := catalog.DurationLabel(days)
		b.WriteString(s.loc.T(lang, localization.KeyDurationItem, localization.Params{
			"label":   label,
			"price":   formatPrice(price),
			"monthly": fmt.Sprintf("%.2f", monthly),
		}))
		rows = append(rows, []models.Option{{
			Label:  fmt.Sprintf("%s — $%s", label, formatPrice(price)),
			Action: fmt.Sprintf("dur:%d:%d", index, days),
		}})
	}
	rows = append(rows, []models.Option{{
		Label:  s.loc.T(lang, localization.KeyBtnBack, nil),
		Action: "plans",
	}})

	return &models.Screen{
		State:   models.StateDurationList,
		Text:    b.String(),
		Options: rows,
	}, nil
}

func (s *Service) routeDuration(user *models.User, rawIndex, rawDays string) (*models.Screen, error) {
	const op = "navigation.routeDuration"

	index, days, err := parseSelection(rawIndex, rawDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan, price, err := s.catalog.Price(index, days)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lang := user.LanguageCode
	text := s.loc.T(lang, localization.KeyPaymentTitle, localization.Params{
		"plan":     plan.Name,
		"duration": strconv.Itoa(days),
		"price":    formatPrice(price),
	})

	rows := [][]models.Option{
		{{Label: s.loc.T(lang, localization.KeyBtnPayCard, nil), Action: fmt.Sprintf("pay:%s:%d:%d", MethodCard, index, days)}},
		{{Label: s.loc.T(lang, localization.KeyBtnPayCrypto, nil), Action: fmt.Sprintf("pay:%s:%d:%d", MethodCrypto, index, days)}},
		{{Label: s.loc.T(lang, localization.KeyBtnPayStars, nil), Action: fmt.Sprintf("pay:%s:%d:%d", MethodStars, index, days)}},
		{{Label: s.loc.T(lang, localization.KeyBtnBack, nil), Action: fmt.Sprintf("plan:%d", index)}},
	}

	return &models.Screen{
		State:   models.StatePaymentMethodList,
		Text:    text,
		Options: rows,
	}, nil
}

func (s *Service) routePayment(ctx context.Context, user *models.User, method, rawIndex, rawDays string) (*models.Screen, error) {
	const op = "navigation.routePayment"

	index, days, err := parseSelection(rawIndex, rawDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch method {
	case MethodCard, MethodCrypto:
		sub, err := s.pay.CompleteDemo(ctx, user, index, days, method)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		text := s.loc.T(user.LanguageCode, localization.KeyPaymentSuccess, localization.Params{
			"plan":     sub.PlanName,
			"duration": strconv.Itoa(days),
			"price":    formatPrice(sub.Price),
			"expires":  sub.ExpiresAt.Format("02.01.2006"),
			"config":   sub.ConfigURL,
		})
		return &models.Screen{
			State:   models.StatePaymentResult,
			Text:    text,
			Options: s.backRow(user.LanguageCode),
		}, nil

	case MethodStars:
		invoice, err := s.pay.Invoice(user.ID, index, days)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		text := s.loc.T(user.LanguageCode, localization.KeyInvoicePending, localization.Params{
			"plan":     invoice.Title,
			"duration": strconv.Itoa(days),
			"price":    formatPrice(invoice.Amount),
		})
		return &models.Screen{
			State:   models.StateInvoice,
			Text:    text,
			Options: s.backRow(user.LanguageCode),
			Invoice: invoice,
		}, nil

	default:
		return s.unroutable(fmt.Sprintf("pay:%s:%s:%s", method, rawIndex, rawDays))
	}
}

func (s *Service) accountScreen(ctx context.Context, user *models.User) (*models.Screen, error) {
	const op = "navigation.accountScreen"

	refs, err := s.repo.CountReferrals(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lang := user.LanguageCode
	text := s.loc.T(lang, localization.KeyAccountTitle, localization.Params{
		"user_id": strconv.FormatInt(user.ID, 10),
		"name":    user.FirstName,
		"date":    user.CreatedAt.Format("02.01.2006"),
		"status":  s.statusLine(lang, user),
		"spent":   formatPrice(user.TotalPaid),
		"refs":    strconv.Itoa(refs),
	})
	return &models.Screen{
		State:   models.StateAccountView,
		Text:    text,
		Options: s.backRow(lang),
	}, nil
}

func (s *Service) adminScreen(ctx context.Context, user *models.User) (*models.Screen, error) {
	const op = "navigation.adminScreen"

	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	text := s.loc.T(user.LanguageCode, localization.KeyAdminInfo, localization.Params{
		"users": strconv.Itoa(total),
	})
	return &models.Screen{
		State:   models.StateInfo,
		Text:    text,
		Options: s.backRow(user.LanguageCode),
	}, nil
}

// languageScreen строит экран выбора языка.
func (s *Service) languageScreen(lang string) *models.Screen {
	var rows [][]models.Option
	for _, info := range s.loc.Languages() {
		rows = append(rows, []models.Option{{
			Label:  info.Flag + " " + info.Name,
			Action: "lang:" + info.Code,
		}})
	}
	return &models.Screen{
		State:   models.StateLanguagePick,
		Text:    s.loc.T(lang, localization.KeyLanguagePrompt, nil),
		Options: rows,
	}
}

// welcomeScreen строит приветствие сразу после регистрации.
func (s *Service) welcomeScreen(user *models.User) *models.Screen {
	lang := user.LanguageCode
	var b strings.Builder
	b.WriteString(s.loc.T(lang, localization.KeyWelcome, localization.Params{"name": user.FirstName}))
	if user.ReferrerID != nil {
		b.WriteString(s.loc.T(lang, localization.KeyWelcomeReferred, nil))
	} else {
		b.WriteString(s.loc.T(lang, localization.KeyWelcomeTrial, nil))
	}
	b.WriteString(s.loc.T(lang, localization.KeyChooseOption, nil))

	return &models.Screen{
		State:   models.StateMainMenu,
		Text:    b.String(),
		Options: s.menuOptions(user),
	}
}

// menuScreen строит главное меню для известного пользователя.
func (s *Service) menuScreen(user *models.User) *models.Screen {
	lang := user.LanguageCode
	text := s.loc.T(lang, localization.KeyWelcomeBack, localization.Params{
		"name":   user.FirstName,
		"status": s.statusLine(lang, user),
	})
	return &models.Screen{
		State:   models.StateMainMenu,
		Text:    text,
		Options: s.menuOptions(user),
	}
}

// menuOptions собирает кнопки главного меню. Состав зависит от того,
// использован ли пробный период, администраторы получают свой пункт.
func (s *Service) menuOptions(user *models.User) [][]models.Option {
	lang := user.LanguageCode
	btn := func(key localization.Key, action string) models.Option {
		return models.Option{Label: s.loc.T(lang, key, nil), Action: action}
	}

	var rows [][]models.Option
	if !user.IsTrialUsed {
		rows = [][]models.Option{
			{btn(localization.KeyBtnTrial, "trial")},
			{btn(localization.KeyBtnBuy, "plans")},
			{btn(localization.KeyBtnAbout, "about"), btn(localization.KeyBtnSupport, "support")},
			{btn(localization.KeyBtnLanguage, "language")},
		}
	} else {
		rows = [][]models.Option{
			{btn(localization.KeyBtnBuy, "plans")},
			{btn(localization.KeyBtnAccount, "account")},
			{btn(localization.KeyBtnReferral, "referral"), btn(localization.KeyBtnPromo, "promo")},
			{btn(localization.KeyBtnHelp, "help"), btn(localization.KeyBtnSupport, "support")},
			{btn(localization.KeyBtnLanguage, "language")},
		}
	}
	if s.shop.IsAdmin(user.ID) {
		rows = append(rows, []models.Option{btn(localization.KeyBtnAdmin, "admin")})
	}
	return rows
}

// plansScreen строит список тарифов; titleKey позволяет показать его и как
// ответ на повторную попытку активации пробного периода.
func (s *Service) plansScreen(user *models.User, titleKey localization.Key) *models.Screen {
	lang := user.LanguageCode
	var b strings.Builder
	b.WriteString(s.loc.T(lang, titleKey, nil))

	var rows [][]models.Option
	for i, plan := range s.catalog.Plans() {
		minPrice := plan.Prices[365] / 12
		plural := ""
		if plan.Devices > 1 {
			plural = "s"
		}
		b.WriteString(s.loc.T(lang, localization.KeyPlanItem, localization.Params{
			"name":    plan.Name,
			"devices": strconv.Itoa(plan.Devices),
			"plural":  plural,
			"price":   fmt.Sprintf("%.2f", minPrice),
		}))
		rows = append(rows, []models.Option{{
			Label:  plan.Name,
			Action: fmt.Sprintf("plan:%d", i),
		}})
	}
	b.WriteString(s.loc.T(lang, localization.KeyPlansFeatures, nil))
	rows = append(rows, []models.Option{{
		Label:  s.loc.T(lang, localization.KeyBtnBack, nil),
		Action: "menu",
	}})

	return &models.Screen{
		State:   models.StatePlanList,
		Text:    b.String(),
		Options: rows,
	}
}

func (s *Service) infoScreen(user *models.User, key localization.Key, params localization.Params) *models.Screen {
	return &models.Screen{
		State:   models.StateInfo,
		Text:    s.loc.T(user.LanguageCode, key, params),
		Options: s.backRow(user.LanguageCode),
	}
}

func (s *Service) blockedScreen(user *models.User) *models.Screen {
	return &models.Screen{
		State: models.StateInfo,
		Text: s.loc.T(user.LanguageCode, localization.KeyBlocked,
			localization.Params{"support": s.shop.SupportUsername}),
	}
}

func (s *Service) backRow(lang string) [][]models.Option {
	return [][]models.Option{{{
		Label:  s.loc.T(lang, localization.KeyBtnBack, nil),
		Action: "menu",
	}}}
}

// statusLine возвращает локализованную строку статуса подписки.
func (s *Service) statusLine(lang string, user *models.User) string {
	st := s.ent.StatusOf(user)
	switch st.Kind {
	case entitlement.StatusActive:
		return s.loc.T(lang, localization.KeyStatusActive,
			localization.Params{"days": strconv.Itoa(st.DaysLeft)})
	case entitlement.StatusExpired:
		return s.loc.T(lang, localization.KeyStatusExpired, nil)
	default:
		return s.loc.T(lang, localization.KeyStatusNoSub, nil)
	}
}

func parseSelection(rawIndex, rawDays string) (int, int, error) {
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		return 0, 0, catalog.ErrInvalidSelection
	}
	days, err := strconv.Atoi(rawDays)
	if err != nil {
		return 0, 0, catalog.ErrInvalidSelection
	}
	return index, days, nil
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
