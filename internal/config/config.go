// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек. Заполняется один раз
// при старте процесса и дальше передаётся по ссылке, глобального
// изменяемого состояния нет.
type Config struct {
	Env                     string `yaml:"env"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	MigrationsPath          string `yaml:"migrations_path"`
	LocalesPath             string `yaml:"locales_path"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	RabbitConnection        `yaml:"rabbit_connection"`
	Shop                    `yaml:"shop"`
	Gateway                 `yaml:"gateway"`
	SMTPConnection          `yaml:"smtp_connection"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitConnection структура для настройки подключения к rabbitmq
type RabbitConnection struct {
	AddressRabbit string        `yaml:"addressrabbit"`
	Retries       int           `yaml:"retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// Shop параметры витрины: пробные периоды, список администраторов,
// контакт поддержки и язык по умолчанию.
type Shop struct {
	TrialDays         int     `yaml:"trial_days" env-default:"3"`
	ReferredTrialDays int     `yaml:"referred_trial_days" env-default:"7"`
	AdminIDs          []int64 `yaml:"admin_ids"`
	SupportUsername   string  `yaml:"support_username" env-default:"@Support"`
	DefaultLanguage   string  `yaml:"default_language" env-default:"en"`
}

// Gateway параметры платёжного шлюза. Сами пути оплаты — заглушки,
// но секрет нужен для проверки подписи webhook-а.
type Gateway struct {
	ProviderToken string `yaml:"provider_token"`
	WebhookSecret string `yaml:"webhook_secret"`
	Currency      string `yaml:"currency" env-default:"USD"`
}

// SMTPConnection структура для настройки почтового транспорта,
// через который уходят письма оператору.
type SMTPConnection struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	OperatorMail string `yaml:"operator_mail"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

// IsAdmin сообщает, входит ли идентификатор в список администраторов.
func (s Shop) IsAdmin(userID int64) bool {
	for _, id := range s.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
