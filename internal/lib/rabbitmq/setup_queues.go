package rabbitmq

// PaymentsExchange — обменник платёжных событий.
const PaymentsExchange = "payments"

// Маршрутные ключи платёжных событий.
const (
	RoutingKeyReceipt   = "payment.receipt"
	RoutingKeyIntegrity = "payment.integrity"
)

// QueueConfig описывает очередь и её маршрутный ключ.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetPaymentQueues возвращает очереди платёжного конвейера:
// квитанции об успешных оплатах и инциденты целостности для оператора.
func GetPaymentQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "payment.receipt", RoutingKey: RoutingKeyReceipt},
		{QueueName: "payment.integrity", RoutingKey: RoutingKeyIntegrity},
	}
}
