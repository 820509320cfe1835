package httpx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barcomanda/comanda-backend/internal/comanda"
	"github.com/barcomanda/comanda-backend/internal/httpx"
	"github.com/barcomanda/comanda-backend/internal/memstore"
)

type testAPI struct {
	router *chi.Mux
	store  *memstore.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memstore.New()
	engine := comanda.NewEngine(store, nil, zap.NewNop(), "comanda-test")
	validate := validator.New()

	r := httpx.NewRouter()
	(&httpx.ComandasHandler{Engine: engine, Validate: validate, Log: zap.NewNop()}).Register(r)
	(&httpx.CashierHandler{Engine: engine, Validate: validate}).Register(r)
	(&httpx.ProductsHandler{Engine: engine, Validate: validate}).Register(r)
	return &testAPI{router: r, store: store}
}

func (a *testAPI) seedProduct(t *testing.T, name, price string, qty int) string {
	t.Helper()
	ctx := context.Background()
	p := &comanda.Product{
		ID:           uuid.NewString(),
		Name:         name,
		Unit:         "un",
		SellingPrice: decimal.RequireFromString(price),
		Active:       true,
	}
	require.NoError(t, a.store.CreateProduct(ctx, p))
	if qty > 0 {
		_, err := a.store.CreditStock(ctx, p.ID, qty, uuid.NewString())
		require.NoError(t, err)
	}
	return p.ID
}

func (a *testAPI) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) comanda.Order {
	t.Helper()
	var o comanda.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	return o
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdentityRequired(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/comandas", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/comandas", "u1", "janitor", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateComanda(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/comandas", "w1", "waiter", map[string]any{"table_id": "12"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decodeOrder(t, rec)
	assert.Equal(t, comanda.StatusOpen, o.Status)
	require.NotNil(t, o.TableID)
	assert.Equal(t, "12", *o.TableID)

	// neither table nor label
	rec = api.do(t, http.MethodPost, "/comandas", "w1", "waiter", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// cashiers do not open comandas
	rec = api.do(t, http.MethodPost, "/comandas", "c1", "cashier", map[string]any{"label": "Ana"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAddItemEndpoint(t *testing.T) {
	api := newTestAPI(t)
	chopp := api.seedProduct(t, "Chopp 500ml", "12.00", 10)

	rec := api.do(t, http.MethodPost, "/comandas", "w1", "waiter", map[string]any{"label": "Ana"})
	require.Equal(t, http.StatusCreated, rec.Code)
	o := decodeOrder(t, rec)

	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/items", "w1", "waiter",
		map[string]any{"product_id": chopp, "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o = decodeOrder(t, rec)
	require.Len(t, o.Items, 1)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("36.00")), "total %s", o.Total)

	// not enough left
	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/items", "w1", "waiter",
		map[string]any{"product_id": chopp, "quantity": 8})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// body validation
	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/items", "w1", "waiter",
		map[string]any{"product_id": chopp, "quantity": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/items", "w1", "waiter",
		map[string]any{"product_id": "not-a-uuid", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveItemAndCourtesyEndpoints(t *testing.T) {
	api := newTestAPI(t)
	chopp := api.seedProduct(t, "Chopp 500ml", "12.00", 10)

	rec := api.do(t, http.MethodPost, "/comandas", "w1", "waiter", map[string]any{"label": "Ana"})
	o := decodeOrder(t, rec)
	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/items", "w1", "waiter",
		map[string]any{"product_id": chopp, "quantity": 2})
	o = decodeOrder(t, rec)
	itemID := o.Items[0].ID

	rec = api.do(t, http.MethodPatch, "/comandas/"+o.ID+"/items/"+itemID+"/courtesy", "w1", "waiter",
		map[string]any{"courtesy": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o = decodeOrder(t, rec)
	assert.True(t, o.Total.IsZero(), "total %s", o.Total)

	// courtesy flag is required, not defaulted
	rec = api.do(t, http.MethodPatch, "/comandas/"+o.ID+"/items/"+itemID+"/courtesy", "w1", "waiter",
		map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodDelete, "/comandas/"+o.ID+"/items/"+itemID, "w1", "waiter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	o = decodeOrder(t, rec)
	assert.Empty(t, o.Items)

	rec = api.do(t, http.MethodDelete, "/comandas/"+o.ID+"/items/"+itemID, "w1", "waiter", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdjustmentsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	chopp := api.seedProduct(t, "Chopp 500ml", "12.00", 10)

	rec := api.do(t, http.MethodPost, "/comandas", "w1", "waiter", map[string]any{"label": "Ana"})
	o := decodeOrder(t, rec)
	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/items", "w1", "waiter",
		map[string]any{"product_id": chopp, "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPatch, "/comandas/"+o.ID+"/adjustments", "w1", "waiter",
		map[string]any{"discount": "6.00", "tip": "3.60"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o = decodeOrder(t, rec)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("33.60")), "total %s", o.Total)
}

func TestCloseCancelAndPaymentEndpoints(t *testing.T) {
	api := newTestAPI(t)
	chopp := api.seedProduct(t, "Chopp 500ml", "12.00", 10)

	rec := api.do(t, http.MethodPost, "/comandas", "w1", "waiter", map[string]any{"label": "Ana"})
	o := decodeOrder(t, rec)
	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/items", "w1", "waiter",
		map[string]any{"product_id": chopp, "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code)

	// no open cashier session yet
	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/payment", "c1", "cashier",
		map[string]any{"method": "CASH"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPost, "/cashier/open", "c1", "cashier",
		map[string]any{"initial_amount": "100.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess comanda.CashierSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))

	// double open
	rec = api.do(t, http.MethodPost, "/cashier/open", "c1", "cashier",
		map[string]any{"initial_amount": "0"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// unknown method fails validation
	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/payment", "c1", "cashier",
		map[string]any{"method": "CHEQUE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/payment", "c1", "cashier",
		map[string]any{"method": "PIX"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeOrder(t, rec)
	assert.Equal(t, comanda.StatusPaid, paid.Status)

	// settled orders reject further payment and cancellation
	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/payment", "c1", "cashier",
		map[string]any{"method": "CASH"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = api.do(t, http.MethodPost, "/comandas/"+o.ID+"/cancel", "c1", "cashier", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/cashier/"+sess.ID+"/close", "c1", "cashier", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// cancel path on a fresh comanda
	rec = api.do(t, http.MethodPost, "/comandas", "w1", "waiter", map[string]any{"label": "Bia"})
	fresh := decodeOrder(t, rec)
	rec = api.do(t, http.MethodPost, "/comandas/"+fresh.ID+"/cancel", "w1", "waiter", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = api.do(t, http.MethodPost, "/comandas/"+fresh.ID+"/cancel", "c1", "cashier", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/comandas/"+fresh.ID, "w1", "waiter", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductsEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/products", "a1", "admin",
		map[string]any{"name": "Agua", "unit": "un", "selling_price": "4.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p comanda.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.Active)

	rec = api.do(t, http.MethodPost, "/products", "w1", "waiter",
		map[string]any{"name": "Agua", "unit": "un", "selling_price": "4.00"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/products/"+p.ID+"/stock", "a1", "admin",
		map[string]any{"quantity": 24})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st comanda.Stock
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 24, st.QuantityCurrent)

	rec = api.do(t, http.MethodPost, "/products/"+p.ID+"/stock", "w1", "waiter",
		map[string]any{"quantity": 5})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/products", "w1", "waiter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []comanda.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestListComandasFilter(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/comandas", "w1", "waiter", map[string]any{"label": "Ana"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodGet, "/comandas?status=OPEN", "w1", "waiter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []comanda.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = api.do(t, http.MethodGet, "/comandas?status=BOGUS", "w1", "waiter", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
