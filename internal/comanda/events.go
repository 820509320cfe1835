package comanda

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventComandaCreated   = "ComandaCreated"
	EventItemAdded        = "ComandaItemAdded"
	EventItemRemoved      = "ComandaItemRemoved"
	EventComandaClosed    = "ComandaClosed"
	EventComandaCancelled = "ComandaCancelled"
	EventComandaPaid      = "ComandaPaid"
	EventItemFulfilled    = "KitchenItemFulfilled" // consumed, published by the kitchen display
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type ComandaCreatedPayload struct {
	OrderID  string  `json:"order_id"`
	TableID  *string `json:"table_id"`
	Label    string  `json:"label,omitempty"`
	WaiterID string  `json:"waiter_id"`
}

type ItemAddedPayload struct {
	OrderID   string          `json:"order_id"`
	ItemID    string          `json:"item_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Courtesy  bool            `json:"courtesy"`
}

type ItemRemovedPayload struct {
	OrderID   string `json:"order_id"`
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ComandaClosedPayload struct {
	OrderID string `json:"order_id"`
}

type ComandaCancelledPayload struct {
	OrderID string    `json:"order_id"`
	Items   []ItemQty `json:"items,omitempty"` // stock returned per product
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ComandaPaidPayload struct {
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id"`
	CashierID string          `json:"cashier_id"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
}

type ItemFulfilledPayload struct {
	OrderID string `json:"order_id"`
	ItemID  string `json:"item_id"`
}
