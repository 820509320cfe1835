package comanda

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	IsComposite  bool            `json:"is_composite"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ModifierGroup constrains how many of its items may be picked on one order
// line. MaxSelect zero means unlimited.
type ModifierGroup struct {
	ID        string         `json:"id"`
	ProductID string         `json:"product_id"`
	Name      string         `json:"name"`
	MinSelect int            `json:"min_select"`
	MaxSelect int            `json:"max_select"`
	Items     []ModifierItem `json:"items"`
}

type ModifierItem struct {
	ID         string          `json:"id"`
	GroupID    string          `json:"group_id"`
	Name       string          `json:"name"`
	PriceExtra decimal.Decimal `json:"price_extra"`
}

type Stock struct {
	ProductID       string    `json:"product_id"`
	QuantityCurrent int       `json:"quantity_current"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const (
	MovementSale     = "SALE"
	MovementReturn   = "RETURN"
	MovementCancel   = "CANCEL"
	MovementPurchase = "PURCHASE"
)

// StockMovement rows are append-only; reversals create inverse entries
// instead of editing history.
type StockMovement struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"` // positive = in, negative = out
	BeforeQty   int       `json:"before_qty"`
	AfterQty    int       `json:"after_qty"`
	ReferenceID string    `json:"reference_id,omitempty"` // order or purchase id
	CreatedAt   time.Time `json:"created_at"`
}

type Order struct {
	ID        string          `json:"id"`
	TableID   *string         `json:"table_id"`
	Label     string          `json:"label,omitempty"` // customer name for counter orders
	Status    Status          `json:"status"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Tip       decimal.Decimal `json:"tip"`
	Total     decimal.Decimal `json:"total"`
	WaiterID  string          `json:"waiter_id"`
	Items     []OrderItem     `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ClosedAt  *time.Time      `json:"closed_at,omitempty"`
}

type OrderItem struct {
	ID          string              `json:"id"`
	OrderID     string              `json:"order_id"`
	ProductID   string              `json:"product_id"`
	ProductName string              `json:"product_name"`
	Quantity    int                 `json:"quantity"`
	UnitPrice   decimal.Decimal     `json:"unit_price"` // snapshot at order time, modifiers included
	IsCourtesy  bool                `json:"is_courtesy"`
	Note        string              `json:"note,omitempty"`
	Fulfilled   bool                `json:"fulfilled"`
	Modifiers   []ModifierSelection `json:"modifiers,omitempty"`
}

// ModifierSelection snapshots name and price so historical orders survive
// catalog edits.
type ModifierSelection struct {
	ID             string          `json:"id"`
	OrderItemID    string          `json:"order_item_id"`
	ModifierItemID string          `json:"modifier_item_id"`
	Name           string          `json:"name"`
	PriceExtra     decimal.Decimal `json:"price_extra"`
}

type CashierSession struct {
	ID            string          `json:"id"`
	OpenedByID    string          `json:"opened_by_id"`
	InitialAmount decimal.Decimal `json:"initial_amount"`
	OpenedAt      time.Time       `json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
}

func (s *CashierSession) Open() bool { return s.ClosedAt == nil }

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodDebit  PaymentMethod = "DEBIT"
	MethodCredit PaymentMethod = "CREDIT"
	MethodPix    PaymentMethod = "PIX"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodDebit, MethodCredit, MethodPix:
		return true
	}
	return false
}

type Payment struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	CashierSessionID string          `json:"cashier_session_id"`
	Method           PaymentMethod   `json:"method"`
	Amount           decimal.Decimal `json:"amount"`
	CreatedAt        time.Time       `json:"created_at"`
}
