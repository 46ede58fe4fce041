// Package smtp отправляет почту оператору через SMTP с STARTTLS.
// Транспорт скрыт за интерфейсом, чтобы сервис рассылки можно было
// тестировать без живого почтового сервера.
package smtp

import "io"

// Client покрывает шаги SMTP-сессии, которые использует рассылка:
// конверт, тело письма и завершение сессии.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface открывает SMTP-сессию и сообщает адрес отправителя.
type TransportInterface interface {
	Connect() (Client, error)
	GetSMTPUser() string
}
