package comanda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	kafkax "github.com/barcomanda/comanda-backend/internal/kafka"
)

// Engine drives every order-state transition. Guards that depend on stored
// state (order status, stock level) are re-checked by the Store inside its
// transaction; the engine owns input validation, role checks, price
// snapshotting and event publishing.
type Engine struct {
	store    Store
	producer *kafkax.Producer // nil disables event publishing (tests, dev mode)
	log      *zap.Logger
	service  string
	now      func() time.Time
}

func NewEngine(store Store, producer *kafkax.Producer, log *zap.Logger, service string) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    store,
		producer: producer,
		log:      log,
		service:  service,
		now:      time.Now,
	}
}

func (e *Engine) identity(ctx context.Context) (Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}

func (e *Engine) requireOrderRole(ctx context.Context) (Identity, error) {
	id, err := e.identity(ctx)
	if err != nil {
		return Identity{}, err
	}
	if !id.Role.CanManageOrders() {
		return Identity{}, ErrForbidden
	}
	return id, nil
}

func (e *Engine) requireCheckoutRole(ctx context.Context) (Identity, error) {
	id, err := e.identity(ctx)
	if err != nil {
		return Identity{}, err
	}
	if !id.Role.CanCheckout() {
		return Identity{}, ErrForbidden
	}
	return id, nil
}

type CreateOrderInput struct {
	TableID *string
	Label   string // customer name for counter orders; required when TableID is nil
}

func (e *Engine) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	id, err := e.requireOrderRole(ctx)
	if err != nil {
		return nil, err
	}

	in.Label = strings.TrimSpace(in.Label)
	if in.TableID != nil && strings.TrimSpace(*in.TableID) == "" {
		in.TableID = nil
	}
	if in.TableID == nil && in.Label == "" {
		return nil, fmt.Errorf("%w: table or label required", ErrInvalidInput)
	}

	now := e.now()
	o := &Order{
		ID:        uuid.NewString(),
		TableID:   in.TableID,
		Label:     in.Label,
		Status:    StatusOpen,
		Subtotal:  decimal.Zero,
		Discount:  decimal.Zero,
		Tip:       decimal.Zero,
		Total:     decimal.Zero,
		WaiterID:  id.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	e.publish(ctx, TopicComandaCreated, EventComandaCreated, o.ID, ComandaCreatedPayload{
		OrderID: o.ID, TableID: o.TableID, Label: o.Label, WaiterID: o.WaiterID,
	})
	return o, nil
}

type AddItemInput struct {
	ProductID       string
	Quantity        int
	ModifierItemIDs []string // selection order is preserved in the snapshot
	IsCourtesy      bool
	Note            string
}

func (e *Engine) AddItem(ctx context.Context, orderID string, in AddItemInput) (*Order, error) {
	if _, err := e.requireOrderRole(ctx); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := e.store.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: product %q is inactive", ErrInvalidInput, p.Name)
	}

	selections, extra, err := e.snapshotModifiers(ctx, p, in.ModifierItemIDs)
	if err != nil {
		return nil, err
	}

	item := &OrderItem{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    in.Quantity,
		UnitPrice:   p.SellingPrice.Add(extra),
		IsCourtesy:  in.IsCourtesy,
		Note:        strings.TrimSpace(in.Note),
		Modifiers:   selections,
	}

	o, err := e.store.AddItem(ctx, orderID, item)
	if err != nil {
		return nil, err
	}

	e.publish(ctx, TopicItemAdded, EventItemAdded, orderID, ItemAddedPayload{
		OrderID: orderID, ItemID: item.ID, ProductID: item.ProductID,
		Quantity: item.Quantity, UnitPrice: item.UnitPrice, Courtesy: item.IsCourtesy,
	})
	return o, nil
}

// snapshotModifiers validates the selection against the product's groups and
// copies name/price at selection time.
func (e *Engine) snapshotModifiers(ctx context.Context, p *Product, itemIDs []string) ([]ModifierSelection, decimal.Decimal, error) {
	extra := decimal.Zero
	groups, err := e.store.ModifierGroupsFor(ctx, p.ID)
	if err != nil {
		return nil, extra, err
	}

	byItem := map[string]ModifierItem{}
	groupOf := map[string]string{}
	for _, g := range groups {
		for _, mi := range g.Items {
			byItem[mi.ID] = mi
			groupOf[mi.ID] = g.ID
		}
	}

	picked := map[string]int{}
	selections := make([]ModifierSelection, 0, len(itemIDs))
	for _, mid := range itemIDs {
		mi, ok := byItem[mid]
		if !ok {
			return nil, extra, fmt.Errorf("%w: unknown modifier item %s", ErrModifierSelection, mid)
		}
		picked[groupOf[mid]]++
		extra = extra.Add(mi.PriceExtra)
		selections = append(selections, ModifierSelection{
			ID:             uuid.NewString(),
			ModifierItemID: mi.ID,
			Name:           mi.Name,
			PriceExtra:     mi.PriceExtra,
		})
	}

	for _, g := range groups {
		n := picked[g.ID]
		if n < g.MinSelect {
			return nil, extra, fmt.Errorf("%w: group %q requires at least %d selection(s)", ErrModifierSelection, g.Name, g.MinSelect)
		}
		if g.MaxSelect > 0 && n > g.MaxSelect {
			return nil, extra, fmt.Errorf("%w: group %q allows at most %d selection(s)", ErrModifierSelection, g.Name, g.MaxSelect)
		}
	}
	return selections, extra, nil
}

func (e *Engine) RemoveItem(ctx context.Context, orderID, itemID string) (*Order, error) {
	if _, err := e.requireOrderRole(ctx); err != nil {
		return nil, err
	}

	before, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var removed *OrderItem
	for i := range before.Items {
		if before.Items[i].ID == itemID {
			removed = &before.Items[i]
			break
		}
	}

	o, err := e.store.RemoveItem(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}

	if removed != nil {
		e.publish(ctx, TopicItemRemoved, EventItemRemoved, orderID, ItemRemovedPayload{
			OrderID: orderID, ItemID: itemID, ProductID: removed.ProductID, Quantity: removed.Quantity,
		})
	}
	return o, nil
}

func (e *Engine) ToggleCourtesy(ctx context.Context, orderID, itemID string, courtesy bool) (*Order, error) {
	if _, err := e.requireOrderRole(ctx); err != nil {
		return nil, err
	}
	return e.store.SetCourtesy(ctx, orderID, itemID, courtesy)
}

func (e *Engine) SetAdjustments(ctx context.Context, orderID string, discount, tip decimal.Decimal) (*Order, error) {
	if _, err := e.requireOrderRole(ctx); err != nil {
		return nil, err
	}
	if discount.IsNegative() || tip.IsNegative() {
		return nil, fmt.Errorf("%w: discount and tip must not be negative", ErrInvalidInput)
	}
	return e.store.SetAdjustments(ctx, orderID, discount, tip)
}

func (e *Engine) CloseOrder(ctx context.Context, orderID string) (*Order, error) {
	if _, err := e.requireOrderRole(ctx); err != nil {
		return nil, err
	}
	o, err := e.store.CloseOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, TopicComandaClosed, EventComandaClosed, orderID, ComandaClosedPayload{OrderID: orderID})
	return o, nil
}

func (e *Engine) CancelOrder(ctx context.Context, orderID string) error {
	if _, err := e.requireCheckoutRole(ctx); err != nil {
		return err
	}

	// snapshot items for the event before the rows are gone
	before, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	returned := make([]ItemQty, 0, len(before.Items))
	for _, it := range before.Items {
		returned = append(returned, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}

	if err := e.store.CancelOrder(ctx, orderID); err != nil {
		return err
	}

	e.publish(ctx, TopicComandaCancelled, EventComandaCancelled, orderID, ComandaCancelledPayload{
		OrderID: orderID, Items: returned,
	})
	return nil
}

func (e *Engine) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if _, err := e.identity(ctx); err != nil {
		return nil, err
	}
	return e.store.GetOrder(ctx, orderID)
}

func (e *Engine) ListOrders(ctx context.Context, status Status) ([]Order, error) {
	if _, err := e.identity(ctx); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return e.store.ListOrders(ctx, status)
}

// RecordPayment settles the order against the acting operator's open cashier
// session. Amount is always the order total; no split payments.
func (e *Engine) RecordPayment(ctx context.Context, orderID string, method PaymentMethod) (*Order, error) {
	id, err := e.requireCheckoutRole(ctx)
	if err != nil {
		return nil, err
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, method)
	}

	sess, err := e.store.OpenSessionFor(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	p := &Payment{
		ID:               uuid.NewString(),
		OrderID:          orderID,
		CashierSessionID: sess.ID,
		Method:           method,
	}
	o, err := e.store.RecordPayment(ctx, p)
	if err != nil {
		return nil, err
	}

	e.publish(ctx, TopicComandaPaid, EventComandaPaid, orderID, ComandaPaidPayload{
		OrderID: orderID, PaymentID: p.ID, CashierID: sess.ID, Method: method, Amount: p.Amount,
	})
	return o, nil
}

func (e *Engine) OpenCashier(ctx context.Context, initialAmount decimal.Decimal) (*CashierSession, error) {
	id, err := e.requireCheckoutRole(ctx)
	if err != nil {
		return nil, err
	}
	if initialAmount.IsNegative() {
		return nil, fmt.Errorf("%w: initial amount must not be negative", ErrInvalidInput)
	}
	s := &CashierSession{
		ID:            uuid.NewString(),
		OpenedByID:    id.UserID,
		InitialAmount: initialAmount,
		OpenedAt:      e.now(),
	}
	if err := e.store.OpenCashier(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Engine) CloseCashier(ctx context.Context, sessionID string) (*CashierSession, error) {
	id, err := e.requireCheckoutRole(ctx)
	if err != nil {
		return nil, err
	}
	s, err := e.store.GetCashierSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.OpenedByID != id.UserID && id.Role != RoleAdmin {
		return nil, ErrForbidden
	}
	return e.store.CloseCashierSession(ctx, sessionID)
}

// MarkItemFulfilled is the kitchen signal: flag the item, and when the item
// is a composite product, drive the order OPEN→CLOSED.
func (e *Engine) MarkItemFulfilled(ctx context.Context, orderID, itemID string) (*Order, error) {
	if _, err := e.requireOrderRole(ctx); err != nil {
		return nil, err
	}

	item, err := e.store.MarkItemFulfilled(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}

	p, err := e.store.GetProduct(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if p.IsComposite {
		o, err := e.CloseOrder(ctx, orderID)
		if err == nil {
			return o, nil
		}
		// fulfillment of a second composite item after the order closed
		if !errors.Is(err, ErrInvalidState) {
			return nil, err
		}
	}
	return e.store.GetOrder(ctx, orderID)
}

// ---- catalog / stock intake (thin CRUD, outside the transactional core) ----

func (e *Engine) CreateProduct(ctx context.Context, p *Product) error {
	id, err := e.identity(ctx)
	if err != nil {
		return err
	}
	if id.Role != RoleAdmin {
		return ErrForbidden
	}
	if strings.TrimSpace(p.Name) == "" || p.SellingPrice.IsNegative() {
		return fmt.Errorf("%w: product needs a name and a non-negative price", ErrInvalidInput)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := e.now()
	p.CreatedAt, p.UpdatedAt = now, now
	return e.store.CreateProduct(ctx, p)
}

func (e *Engine) ListProducts(ctx context.Context) ([]Product, error) {
	if _, err := e.identity(ctx); err != nil {
		return nil, err
	}
	return e.store.ListProducts(ctx)
}

// CreditStock is the purchase-intake entry point: unconditional increment,
// stock row created on first purchase.
func (e *Engine) CreditStock(ctx context.Context, productID string, qty int) (*Stock, error) {
	id, err := e.identity(ctx)
	if err != nil {
		return nil, err
	}
	if id.Role != RoleAdmin {
		return nil, ErrForbidden
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := e.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return e.store.CreditStock(ctx, productID, qty, uuid.NewString())
}

func (e *Engine) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	if e.producer == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    e.now().UTC(),
		Producer:      e.service,
		TraceID:       TraceFromContext(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	e.producer.Publish(topic, PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
