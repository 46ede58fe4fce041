// Package metrics объявляет счётчики Prometheus витрины.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счётчики бизнес-событий. Регистрируются в реестре по умолчанию
// и отдаются через /metrics.
var (
	// TrialsGranted считает успешные активации пробного периода.
	TrialsGranted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpnshop_trials_granted_total",
		Help: "Number of trial subscriptions granted.",
	})

	// PaymentsCompleted считает завершённые оплаты по способу оплаты.
	PaymentsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpnshop_payments_completed_total",
		Help: "Number of completed payments by method.",
	}, []string{"method"})

	// PaymentIntegrityFailures считает отказы атомарной записи оплаты.
	PaymentIntegrityFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpnshop_payment_integrity_failures_total",
		Help: "Number of payments rejected because the ledger write failed.",
	})

	// UnroutableActions считает токены действий, не подошедшие ни под
	// один маршрут навигации.
	UnroutableActions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpnshop_unroutable_actions_total",
		Help: "Number of action tokens that did not match any route.",
	})
)
