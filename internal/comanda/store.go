package comanda

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the transactional boundary the engine drives. Every mutating
// order operation is a single atomic unit: the implementation must apply the
// stock movement, the item change and the total recomputation together, or
// not at all, and must re-check order status under a lock inside that unit.
type Store interface {
	OrderStore
	CashierStore
	CatalogStore
	StockStore
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *Order) error
	// GetOrder returns the order with its items, or ErrNotFound.
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	// ListOrders filters by status when status is non-empty.
	ListOrders(ctx context.Context, status Status) ([]Order, error)

	// AddItem reserves stock, inserts the item and recomputes totals.
	// Fails with ErrInsufficientStock (no mutation) when stock is short, and
	// ErrInvalidState when the order is not OPEN.
	AddItem(ctx context.Context, orderID string, item *OrderItem) (*Order, error)
	// RemoveItem releases the item's stock, deletes it and recomputes.
	RemoveItem(ctx context.Context, orderID, itemID string) (*Order, error)
	// SetCourtesy flips the flag and recomputes; no stock movement.
	SetCourtesy(ctx context.Context, orderID, itemID string, courtesy bool) (*Order, error)
	SetAdjustments(ctx context.Context, orderID string, discount, tip decimal.Decimal) (*Order, error)
	MarkItemFulfilled(ctx context.Context, orderID, itemID string) (*OrderItem, error)

	CloseOrder(ctx context.Context, orderID string) (*Order, error)
	// CancelOrder releases all reserved stock, then deletes items and order.
	CancelOrder(ctx context.Context, orderID string) error

	// RecordPayment fills p.Amount from the order total, persists the payment
	// and flips the order to PAID in one unit.
	RecordPayment(ctx context.Context, p *Payment) (*Order, error)
}

type CashierStore interface {
	// OpenCashier fails with ErrSessionAlreadyOpen if the operator already
	// has a session with no closing date.
	OpenCashier(ctx context.Context, s *CashierSession) error
	GetCashierSession(ctx context.Context, sessionID string) (*CashierSession, error)
	// OpenSessionFor returns the operator's open session or ErrNoOpenCashier.
	OpenSessionFor(ctx context.Context, operatorID string) (*CashierSession, error)
	CloseCashierSession(ctx context.Context, sessionID string) (*CashierSession, error)
}

type CatalogStore interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, productID string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// ModifierGroupsFor returns the product's groups with their items.
	ModifierGroupsFor(ctx context.Context, productID string) ([]ModifierGroup, error)
}

type StockStore interface {
	// CreditStock is purchase intake: unconditional increment, creating the
	// stock row when absent.
	CreditStock(ctx context.Context, productID string, qty int, referenceID string) (*Stock, error)
	GetStock(ctx context.Context, productID string) (*Stock, error)
}
