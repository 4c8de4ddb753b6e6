package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicOrderCanceled      = "order.canceled"
	TopicCashboxClosed      = "cashbox.closed"
	TopicTasksGenerated     = "tasks.generated"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderStatusChanged,
		TopicOrderCanceled,
		TopicCashboxClosed,
		TopicTasksGenerated,
	}
}
