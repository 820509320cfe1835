package kitchen_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barcomanda/comanda-backend/internal/comanda"
	kafkax "github.com/barcomanda/comanda-backend/internal/kafka"
	"github.com/barcomanda/comanda-backend/internal/kitchen"
	"github.com/barcomanda/comanda-backend/internal/memstore"
)

func newService(t *testing.T) (*kitchen.Service, *comanda.Engine, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	engine := comanda.NewEngine(store, nil, zap.NewNop(), "comanda-test")
	svc := &kitchen.Service{Engine: engine, ServiceName: "kitchen-test", Log: zap.NewNop()}
	return svc, engine, store
}

func fulfillmentMessage(t *testing.T, orderID, itemID string) kafkago.Message {
	t.Helper()
	env := comanda.Envelope{
		EventID:       uuid.NewString(),
		EventType:     comanda.EventItemFulfilled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "kitchen-display",
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(comanda.ItemFulfilledPayload{OrderID: orderID, ItemID: itemID}),
	}
	return kafkago.Message{Key: comanda.PartitionKey(orderID), Value: kafkax.MustMarshal(env)}
}

func TestHandleItemFulfilledClosesCompositeOrder(t *testing.T) {
	svc, engine, store := newService(t)
	ctx := context.Background()

	marmita := &comanda.Product{
		ID: uuid.NewString(), Name: "Marmita", Unit: "un",
		SellingPrice: decimal.RequireFromString("25.00"), IsComposite: true, Active: true,
	}
	require.NoError(t, store.CreateProduct(ctx, marmita))
	_, err := store.CreditStock(ctx, marmita.ID, 5, uuid.NewString())
	require.NoError(t, err)

	waiter := comanda.WithIdentity(ctx, comanda.Identity{UserID: "w1", Role: comanda.RoleWaiter})
	table := "7"
	o, err := engine.CreateOrder(waiter, comanda.CreateOrderInput{TableID: &table})
	require.NoError(t, err)
	o, err = engine.AddItem(waiter, o.ID, comanda.AddItemInput{ProductID: marmita.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, svc.HandleItemFulfilled(ctx, fulfillmentMessage(t, o.ID, o.Items[0].ID)))

	after, err := store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, comanda.StatusClosed, after.Status)
	assert.True(t, after.Items[0].Fulfilled)
}

func TestHandleItemFulfilledIgnoresForeignEvents(t *testing.T) {
	svc, _, _ := newService(t)

	env := comanda.Envelope{
		EventID:   uuid.NewString(),
		EventType: comanda.EventComandaClosed,
		Payload:   kafkax.MustMarshal(comanda.ComandaClosedPayload{OrderID: uuid.NewString()}),
	}
	m := kafkago.Message{Value: kafkax.MustMarshal(env)}
	assert.NoError(t, svc.HandleItemFulfilled(context.Background(), m))
}

func TestHandleItemFulfilledCommitsOnMissingOrder(t *testing.T) {
	svc, _, _ := newService(t)

	// the comanda was cancelled before the kitchen got to it
	m := fulfillmentMessage(t, uuid.NewString(), uuid.NewString())
	assert.NoError(t, svc.HandleItemFulfilled(context.Background(), m))
}

func TestHandleItemFulfilledCommitsOnSettledOrder(t *testing.T) {
	svc, engine, store := newService(t)
	ctx := context.Background()

	chopp := &comanda.Product{
		ID: uuid.NewString(), Name: "Chopp 500ml", Unit: "un",
		SellingPrice: decimal.RequireFromString("12.00"), Active: true,
	}
	require.NoError(t, store.CreateProduct(ctx, chopp))
	_, err := store.CreditStock(ctx, chopp.ID, 5, uuid.NewString())
	require.NoError(t, err)

	waiter := comanda.WithIdentity(ctx, comanda.Identity{UserID: "w1", Role: comanda.RoleWaiter})
	cashier := comanda.WithIdentity(ctx, comanda.Identity{UserID: "c1", Role: comanda.RoleCashier})

	o, err := engine.CreateOrder(waiter, comanda.CreateOrderInput{Label: "Ana"})
	require.NoError(t, err)
	o, err = engine.AddItem(waiter, o.ID, comanda.AddItemInput{ProductID: chopp.ID, Quantity: 1})
	require.NoError(t, err)
	itemID := o.Items[0].ID

	_, err = engine.OpenCashier(cashier, decimal.Zero)
	require.NoError(t, err)
	_, err = engine.RecordPayment(cashier, o.ID, comanda.MethodCash)
	require.NoError(t, err)

	// late fulfillment for a paid comanda is logged and committed
	assert.NoError(t, svc.HandleItemFulfilled(ctx, fulfillmentMessage(t, o.ID, itemID)))
}

func TestHandleItemFulfilledBadEnvelope(t *testing.T) {
	svc, _, _ := newService(t)
	m := kafkago.Message{Value: []byte("not json")}
	assert.Error(t, svc.HandleItemFulfilled(context.Background(), m))
}
