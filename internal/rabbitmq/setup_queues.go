package rabbitmq

// Exchange обменник доменных событий.
const Exchange = "entitlements"

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetEventQueues возвращает очереди доменных событий: жизненный цикл
// подписок и расход фич. Обменник direct, поэтому каждая пара
// очередь-ключ объявляется отдельной привязкой.
func GetEventQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "entitlements.lifecycle", RoutingKey: "subscription.created"},
		{QueueName: "entitlements.lifecycle", RoutingKey: "subscription.started"},
		{QueueName: "entitlements.lifecycle", RoutingKey: "subscription.scheduled"},
		{QueueName: "entitlements.lifecycle", RoutingKey: "subscription.trial_started"},
		{QueueName: "entitlements.lifecycle", RoutingKey: "subscription.renewed"},
		{QueueName: "entitlements.lifecycle", RoutingKey: "subscription.cancelled"},
		{QueueName: "entitlements.lifecycle", RoutingKey: "subscription.reactivated"},
		{QueueName: "entitlements.lifecycle", RoutingKey: "subscription.plan_changed"},
		{QueueName: "entitlements.lifecycle", RoutingKey: "subscription.expiring"},
		{QueueName: "entitlements.usage", RoutingKey: "feature.used"},
	}
}
