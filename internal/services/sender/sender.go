// Package sender превращает платёжные события в письма оператору.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/smtp"
	"github.com/magabrotheeeer/vpnshop-bot/internal/models"
)

// SenderService отправляет письма о платёжных событиях.
type SenderService struct {
	transport    smtp.TransportInterface
	operatorMail string
	log          *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport smtp.TransportInterface, operatorMail string, log *slog.Logger) *SenderService {
	return &SenderService{
		transport:    transport,
		operatorMail: operatorMail,
		log:          log,
	}
}

// SendReceipt отправляет оператору квитанцию об успешной оплате.
func (s *SenderService) SendReceipt(body []byte) error {
	var event models.ReceiptEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal receipt event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	subject := fmt.Sprintf("Оплата подписки: пользователь %d", event.UserID)
	bodyText := fmt.Sprintf(`Получена оплата.

Пользователь: %d
Тариф: %s, %d дней
Сумма: %.2f %s
Способ: %s
Внешний идентификатор: %s
Подписка действует до: %s`,
		event.UserID, event.PlanName, event.DurationDays,
		event.Amount, event.Currency, event.Method, event.ExternalID,
		event.ExpiresAt.Format("02.01.2006"))

	return s.sendEmail([]string{s.operatorMail}, subject, bodyText)
}

// SendIntegrityAlert отправляет оператору сигнал о списанной, но не
// зафиксированной оплате. Такие случаи разбираются вручную.
func (s *SenderService) SendIntegrityAlert(body []byte) error {
	var event models.IntegrityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal integrity event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	subject := fmt.Sprintf("ВНИМАНИЕ: оплата не зафиксирована, пользователь %d", event.UserID)
	bodyText := fmt.Sprintf(`Шлюз подтвердил оплату, но запись в хранилище не удалась.
Деньги списаны, права не выданы. Требуется ручной разбор.

Пользователь: %d
Внешний идентификатор: %s
Полезная нагрузка счёта: %s
Причина: %s
Время: %s`,
		event.UserID, event.ExternalID, event.Payload, event.Reason,
		event.CreatedAt.Format("02.01.2006 15:04:05"))

	return s.sendEmail([]string{s.operatorMail}, subject, bodyText)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", "from", s.transport.GetSMTPUser(), "error", sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", "recipient", addr, "error", sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
