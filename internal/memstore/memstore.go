// Package memstore implements comanda.Store in memory. It backs dev mode
// (no POSTGRES_DSN) and the engine/handler tests. One mutex stands in for the
// database transaction: every mutating operation holds it end-to-end, so the
// same atomicity the pg store gets from transactions holds here.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/barcomanda/comanda-backend/internal/comanda"
)

type Store struct {
	mu        sync.Mutex
	products  map[string]comanda.Product
	groups    map[string][]comanda.ModifierGroup // keyed by product id
	stock     map[string]int
	movements []comanda.StockMovement
	orders    map[string]*comanda.Order
	sessions  map[string]*comanda.CashierSession
	payments  map[string]comanda.Payment // keyed by order id
}

func New() *Store {
	return &Store{
		products: map[string]comanda.Product{},
		groups:   map[string][]comanda.ModifierGroup{},
		stock:    map[string]int{},
		orders:   map[string]*comanda.Order{},
		sessions: map[string]*comanda.CashierSession{},
		payments: map[string]comanda.Payment{},
	}
}

var _ comanda.Store = (*Store)(nil)

func cloneOrder(o *comanda.Order) *comanda.Order {
	c := *o
	c.Items = make([]comanda.OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	for i := range c.Items {
		mods := make([]comanda.ModifierSelection, len(c.Items[i].Modifiers))
		copy(mods, c.Items[i].Modifiers)
		c.Items[i].Modifiers = mods
	}
	return &c
}

func (s *Store) order(orderID string) (*comanda.Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", comanda.ErrNotFound, orderID)
	}
	return o, nil
}

func (s *Store) openOrder(orderID string) (*comanda.Order, error) {
	o, err := s.order(orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != comanda.StatusOpen {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}
	return o, nil
}

func (s *Store) recompute(o *comanda.Order) {
	o.Subtotal, o.Total = comanda.Recompute(o.Items, o.Discount, o.Tip)
	o.UpdatedAt = time.Now()
}

func (s *Store) move(productID, typ string, delta int, refID string) {
	after := s.stock[productID]
	s.movements = append(s.movements, comanda.StockMovement{
		ID:          uuid.NewString(),
		ProductID:   productID,
		Type:        typ,
		Quantity:    delta,
		BeforeQty:   after - delta,
		AfterQty:    after,
		ReferenceID: refID,
		CreatedAt:   time.Now(),
	})
}

// ---- orders ----

func (s *Store) CreateOrder(_ context.Context, o *comanda.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*comanda.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.order(orderID)
	if err != nil {
		return nil, err
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, status comanda.Status) ([]comanda.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []comanda.Order
	for _, o := range s.orders {
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	return out, nil
}

func (s *Store) AddItem(_ context.Context, orderID string, item *comanda.OrderItem) (*comanda.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.openOrder(orderID)
	if err != nil {
		return nil, err
	}

	// conditional decrement; a missing stock row counts as zero
	if s.stock[item.ProductID] < item.Quantity {
		return nil, fmt.Errorf("%w: product %s needs %d", comanda.ErrInsufficientStock, item.ProductID, item.Quantity)
	}
	s.stock[item.ProductID] -= item.Quantity
	s.move(item.ProductID, comanda.MovementSale, -item.Quantity, orderID)

	it := *item
	it.OrderID = orderID
	o.Items = append(o.Items, it)
	s.recompute(o)
	return cloneOrder(o), nil
}

func (s *Store) RemoveItem(_ context.Context, orderID, itemID string) (*comanda.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.openOrder(orderID)
	if err != nil {
		return nil, err
	}

	for i, it := range o.Items {
		if it.ID != itemID {
			continue
		}
		s.stock[it.ProductID] += it.Quantity
		s.move(it.ProductID, comanda.MovementReturn, it.Quantity, orderID)
		o.Items = append(o.Items[:i], o.Items[i+1:]...)
		s.recompute(o)
		return cloneOrder(o), nil
	}
	return nil, fmt.Errorf("%w: item %s", comanda.ErrNotFound, itemID)
}

func (s *Store) SetCourtesy(_ context.Context, orderID, itemID string, courtesy bool) (*comanda.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.openOrder(orderID)
	if err != nil {
		return nil, err
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items[i].IsCourtesy = courtesy
			s.recompute(o)
			return cloneOrder(o), nil
		}
	}
	return nil, fmt.Errorf("%w: item %s", comanda.ErrNotFound, itemID)
}

func (s *Store) SetAdjustments(_ context.Context, orderID string, discount, tip decimal.Decimal) (*comanda.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.openOrder(orderID)
	if err != nil {
		return nil, err
	}
	o.Discount, o.Tip = discount, tip
	s.recompute(o)
	return cloneOrder(o), nil
}

func (s *Store) MarkItemFulfilled(_ context.Context, orderID, itemID string) (*comanda.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.order(orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items[i].Fulfilled = true
			it := o.Items[i]
			return &it, nil
		}
	}
	return nil, fmt.Errorf("%w: item %s", comanda.ErrNotFound, itemID)
}

func (s *Store) CloseOrder(_ context.Context, orderID string) (*comanda.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.order(orderID)
	if err != nil {
		return nil, err
	}
	if !comanda.CanTransition(o.Status, comanda.StatusClosed) {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}
	now := time.Now()
	o.Status = comanda.StatusClosed
	o.ClosedAt = &now
	o.UpdatedAt = now
	return cloneOrder(o), nil
}

func (s *Store) CancelOrder(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.order(orderID)
	if err != nil {
		return err
	}
	if !comanda.CanTransition(o.Status, comanda.StatusCancelled) {
		return fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}
	for _, it := range o.Items {
		s.stock[it.ProductID] += it.Quantity
		s.move(it.ProductID, comanda.MovementCancel, it.Quantity, orderID)
	}
	delete(s.orders, orderID)
	return nil
}

func (s *Store) RecordPayment(_ context.Context, p *comanda.Payment) (*comanda.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.order(p.OrderID)
	if err != nil {
		return nil, err
	}
	if !comanda.CanTransition(o.Status, comanda.StatusPaid) {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}
	if _, dup := s.payments[p.OrderID]; dup {
		return nil, fmt.Errorf("%w: order already settled", comanda.ErrInvalidState)
	}

	now := time.Now()
	p.Amount = o.Total
	p.CreatedAt = now
	s.payments[p.OrderID] = *p

	o.Status = comanda.StatusPaid
	if o.ClosedAt == nil {
		o.ClosedAt = &now
	}
	o.UpdatedAt = now
	return cloneOrder(o), nil
}

// ---- cashier ----

func (s *Store) OpenCashier(_ context.Context, sess *comanda.CashierSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.OpenedByID == sess.OpenedByID && existing.Open() {
			return comanda.ErrSessionAlreadyOpen
		}
	}
	c := *sess
	s.sessions[sess.ID] = &c
	return nil
}

func (s *Store) GetCashierSession(_ context.Context, sessionID string) (*comanda.CashierSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", comanda.ErrNotFound, sessionID)
	}
	c := *sess
	return &c, nil
}

func (s *Store) OpenSessionFor(_ context.Context, operatorID string) (*comanda.CashierSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.OpenedByID == operatorID && sess.Open() {
			c := *sess
			return &c, nil
		}
	}
	return nil, comanda.ErrNoOpenCashier
}

func (s *Store) CloseCashierSession(_ context.Context, sessionID string) (*comanda.CashierSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", comanda.ErrNotFound, sessionID)
	}
	if !sess.Open() {
		return nil, fmt.Errorf("%w: session already closed", comanda.ErrInvalidState)
	}
	now := time.Now()
	sess.ClosedAt = &now
	c := *sess
	return &c, nil
}

// ---- catalog ----

func (s *Store) CreateProduct(_ context.Context, p *comanda.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = *p
	return nil
}

func (s *Store) GetProduct(_ context.Context, productID string) (*comanda.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", comanda.ErrNotFound, productID)
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]comanda.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]comanda.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) ModifierGroupsFor(_ context.Context, productID string) ([]comanda.ModifierGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]comanda.ModifierGroup(nil), s.groups[productID]...), nil
}

// SetModifierGroups seeds modifier configuration; group management itself is
// owned by the catalog collaborator.
func (s *Store) SetModifierGroups(productID string, groups []comanda.ModifierGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[productID] = groups
}

// ---- stock ----

func (s *Store) CreditStock(_ context.Context, productID string, qty int, referenceID string) (*comanda.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] += qty
	s.move(productID, comanda.MovementPurchase, qty, referenceID)
	return &comanda.Stock{ProductID: productID, QuantityCurrent: s.stock[productID], UpdatedAt: time.Now()}, nil
}

func (s *Store) GetStock(_ context.Context, productID string) (*comanda.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qty, ok := s.stock[productID]
	if !ok {
		return nil, fmt.Errorf("%w: stock for product %s", comanda.ErrNotFound, productID)
	}
	return &comanda.Stock{ProductID: productID, QuantityCurrent: qty, UpdatedAt: time.Now()}, nil
}

// Movements returns a copy of the movement ledger, oldest first.
func (s *Store) Movements(productID string) []comanda.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []comanda.StockMovement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}
