package comanda

const (
	TopicComandaCreated   = "comanda.created"
	TopicItemAdded        = "comanda.item.added"
	TopicItemRemoved      = "comanda.item.removed"
	TopicComandaClosed    = "comanda.closed"
	TopicComandaCancelled = "comanda.cancelled"
	TopicComandaPaid      = "comanda.paid"
	TopicItemFulfilled    = "kitchen.item.fulfilled"
)

// Partition key = order id, so all events of one comanda keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
