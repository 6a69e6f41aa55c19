package rabbitmq

import "github.com/magabrotheeeer/issue-quota/internal/models"

// QueueConfig очередь и ключи маршрутизации, по которым она получает сообщения.
type QueueConfig struct {
	QueueName   string
	RoutingKeys []string
}

// GetUsageQueues очереди событий использования квот.
func GetUsageQueues() []QueueConfig {
	return []QueueConfig{
		{
			QueueName: "quota.usage",
			RoutingKeys: []string{
				string(models.EventQuotaConsumed),
				string(models.EventReissueConsumed),
			},
		},
		{
			QueueName:   "quota.lifecycle",
			RoutingKeys: []string{string(models.EventSubscriptionExpired)},
		},
	}
}
