// Package receiptsender собирает воркер, который превращает платёжные
// события из брокера в письма оператору.
package receiptsender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpnshop-bot/internal/config"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpnshop-bot/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/vpnshop-bot/internal/services/sender"
)

// App — собранный воркер почтовых уведомлений.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New собирает воркер из конфигурации.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.AddressRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPaymentQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTPConnection, logger)
	senderService := senderservice.NewSenderService(transport, cfg.OperatorMail, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run подписывается на очереди платёжных событий и работает до отмены
// контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, "payment.receipt", a.senderService.SendReceipt)
	if err != nil {
		a.logger.Error("failed to start payment.receipt consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, "payment.integrity", a.senderService.SendIntegrityAlert)
	if err != nil {
		a.logger.Error("failed to start payment.integrity consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("receipt-sender shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
