// Package localization реализует провайдер локализованных сообщений.
// Таблицы строк поставляются снаружи в виде yaml-файлов (по одному на язык)
// и загружаются один раз при старте. Ключи сообщений типизированы,
// цепочка фолбэков фиксирована: запрошенный язык -> язык по умолчанию ->
// сырой ключ.
package localization

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Key — типизированный ключ сообщения.
type Key string

// Ключи сообщений витрины.
const (
	KeyWelcome         Key = "welcome"
	KeyWelcomeReferred Key = "welcome_referred"
	KeyWelcomeTrial    Key = "welcome_trial"
	KeyChooseOption    Key = "choose_option"
	KeyWelcomeBack     Key = "welcome_back"
	KeyLanguagePrompt  Key = "language_prompt"

	KeyBtnTrial     Key = "btn_trial"
	KeyBtnBuy       Key = "btn_buy"
	KeyBtnAccount   Key = "btn_account"
	KeyBtnReferral  Key = "btn_referral"
	KeyBtnPromo     Key = "btn_promo"
	KeyBtnAbout     Key = "btn_about"
	KeyBtnHelp      Key = "btn_help"
	KeyBtnSupport   Key = "btn_support"
	KeyBtnAdmin     Key = "btn_admin"
	KeyBtnBack      Key = "btn_back"
	KeyBtnLanguage  Key = "btn_language"
	KeyBtnPayCard   Key = "btn_pay_card"
	KeyBtnPayCrypto Key = "btn_pay_crypto"
	KeyBtnPayStars  Key = "btn_pay_stars"

	KeyTrialUsed      Key = "trial_used"
	KeyTrialActivated Key = "trial_activated"

	KeyPlansTitle     Key = "plans_title"
	KeyPlanItem       Key = "plan_item"
	KeyPlansFeatures  Key = "plans_features"
	KeyDurationTitle  Key = "duration_title"
	KeyDurationItem   Key = "duration_item"
	KeyPaymentTitle   Key = "payment_title"
	KeyPaymentSuccess Key = "payment_success"
	KeyPaymentFailed  Key = "payment_failed"
	KeyInvoicePending Key = "invoice_pending"

	KeyAccountTitle  Key = "account_title"
	KeyStatusNoSub   Key = "status_no_sub"
	KeyStatusExpired Key = "status_expired"
	KeyStatusActive  Key = "status_active"

	KeyAbout        Key = "about"
	KeySupport      Key = "support"
	KeyReferralInfo Key = "referral_info"
	KeyPromoInfo    Key = "promo_info"
	KeyHelpInfo     Key = "help_info"
	KeyAdminInfo    Key = "admin_info"
	KeyBlocked      Key = "blocked"
)

// Params — параметры подстановки в шаблон сообщения.
// Плейсхолдеры в шаблоне имеют вид {name}.
type Params map[string]string

// LanguageInfo описывает один доступный язык для экрана выбора.
type LanguageInfo struct {
	Code string
	Flag string
	Name string
}

type table struct {
	Code     string         `yaml:"code"`
	Name     string         `yaml:"name"`
	Flag     string         `yaml:"flag"`
	Messages map[Key]string `yaml:"messages"`
}

// Localizer отдаёт локализованные сообщения по языку и ключу.
type Localizer struct {
	defaultLang string
	tables      map[string]table
	languages   []LanguageInfo
}

// Load читает все yaml-файлы локалей из каталога.
func Load(dir, defaultLang string) (*Localizer, error) {
	const op = "localization.Load"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tables := make(map[string]table)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var tbl table
		if err := yaml.Unmarshal(raw, &tbl); err != nil {
			return nil, fmt.Errorf("%s: failed to parse %s: %w", op, entry.Name(), err)
		}
		if tbl.Code == "" {
			return nil, fmt.Errorf("%s: locale %s has no code", op, entry.Name())
		}
		tables[tbl.Code] = tbl
	}

	if _, ok := tables[defaultLang]; !ok {
		return nil, fmt.Errorf("%s: default language %q is not loaded", op, defaultLang)
	}

	languages := make([]LanguageInfo, 0, len(tables))
	for _, tbl := range tables {
		languages = append(languages, LanguageInfo{Code: tbl.Code, Flag: tbl.Flag, Name: tbl.Name})
	}
	sort.Slice(languages, func(i, j int) bool { return languages[i].Code < languages[j].Code })

	return &Localizer{defaultLang: defaultLang, tables: tables, languages: languages}, nil
}

// Languages возвращает список загруженных языков в стабильном порядке.
func (l *Localizer) Languages() []LanguageInfo {
	return l.languages
}

// Has сообщает, загружен ли язык.
func (l *Localizer) Has(lang string) bool {
	_, ok := l.tables[lang]
	return ok
}

// T возвращает сообщение по языку и ключу с подстановкой параметров.
// Если язык или ключ отсутствуют, используется язык по умолчанию,
// а затем сырой ключ.
func (l *Localizer) T(lang string, key Key, params Params) string {
	text, ok := l.lookup(lang, key)
	if !ok {
		text, ok = l.lookup(l.defaultLang, key)
	}
	if !ok {
		text = string(key)
	}
	if len(params) == 0 {
		return text
	}

	pairs := make([]string, 0, len(params)*2)
	for name, value := range params {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func (l *Localizer) lookup(lang string, key Key) (string, bool) {
	tbl, ok := l.tables[lang]
	if !ok {
		return "", false
	}
	text, ok := tbl.Messages[key]
	return text, ok
}
