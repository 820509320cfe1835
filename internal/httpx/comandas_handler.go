package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/barcomanda/comanda-backend/internal/comanda"
	"github.com/barcomanda/comanda-backend/internal/redisx"
)

type ComandasHandler struct {
	Engine   *comanda.Engine
	Redis    *redis.Client // nil disables the read cache
	Validate *validator.Validate
	Log      *zap.Logger
}

func (h *ComandasHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(Identity)
		r.Post("/comandas", h.create)
		r.Get("/comandas", h.list)
		r.Get("/comandas/{id}", h.get)
		r.Post("/comandas/{id}/items", h.addItem)
		r.Delete("/comandas/{id}/items/{itemID}", h.removeItem)
		r.Patch("/comandas/{id}/items/{itemID}/courtesy", h.toggleCourtesy)
		r.Patch("/comandas/{id}/adjustments", h.setAdjustments)
		r.Post("/comandas/{id}/close", h.close)
		r.Post("/comandas/{id}/cancel", h.cancel)
		r.Post("/comandas/{id}/payment", h.recordPayment)
	})
}

// cacheComanda keeps GETs cheap; mutations overwrite the entry so readers
// never see a stale total for long.
func (h *ComandasHandler) cacheComanda(ctx context.Context, o *comanda.Order) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyComanda, o.ID)
	if err := h.Redis.Set(ctx, key, b, redisx.TTLComandaCache).Err(); err != nil {
		h.Log.Debug("comanda cache set failed", zap.Error(err))
	}
}

func (h *ComandasHandler) dropComanda(ctx context.Context, orderID string) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyComanda, orderID)).Err()
}

type createComandaReq struct {
	TableID *string `json:"table_id"`
	Label   string  `json:"label" validate:"max=120"`
}

func (h *ComandasHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createComandaReq
	if err := decodeBody(r, &req, h.Validate); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.CreateOrder(ctx, comanda.CreateOrderInput{TableID: req.TableID, Label: req.Label})
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheComanda(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *ComandasHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	orders, err := h.Engine.ListOrders(ctx, comanda.Status(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []comanda.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *ComandasHandler) get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyComanda, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	o, err := h.Engine.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheComanda(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

type addItemReq struct {
	ProductID string   `json:"product_id" validate:"required,uuid"`
	Quantity  int      `json:"quantity" validate:"required,gt=0"`
	Modifiers []string `json:"modifiers" validate:"dive,uuid"`
	Courtesy  bool     `json:"courtesy"`
	Note      string   `json:"note" validate:"max=240"`
}

func (h *ComandasHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decodeBody(r, &req, h.Validate); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.AddItem(ctx, chi.URLParam(r, "id"), comanda.AddItemInput{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		ModifierItemIDs: req.Modifiers,
		IsCourtesy:      req.Courtesy,
		Note:            req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheComanda(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *ComandasHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.RemoveItem(ctx, chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheComanda(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

type courtesyReq struct {
	Courtesy *bool `json:"courtesy" validate:"required"`
}

func (h *ComandasHandler) toggleCourtesy(w http.ResponseWriter, r *http.Request) {
	var req courtesyReq
	if err := decodeBody(r, &req, h.Validate); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.ToggleCourtesy(ctx, chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), *req.Courtesy)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheComanda(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

type adjustmentsReq struct {
	Discount decimal.Decimal `json:"discount"`
	Tip      decimal.Decimal `json:"tip"`
}

func (h *ComandasHandler) setAdjustments(w http.ResponseWriter, r *http.Request) {
	var req adjustmentsReq
	if err := decodeBody(r, &req, h.Validate); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.SetAdjustments(ctx, chi.URLParam(r, "id"), req.Discount, req.Tip)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheComanda(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *ComandasHandler) close(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.CloseOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheComanda(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *ComandasHandler) cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.CancelOrder(ctx, orderID); err != nil {
		writeError(w, err)
		return
	}
	h.dropComanda(ctx, orderID)
	w.WriteHeader(http.StatusNoContent)
}

type paymentReq struct {
	Method string `json:"method" validate:"required,oneof=CASH DEBIT CREDIT PIX"`
}

func (h *ComandasHandler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentReq
	if err := decodeBody(r, &req, h.Validate); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.RecordPayment(ctx, chi.URLParam(r, "id"), comanda.PaymentMethod(req.Method))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheComanda(ctx, o)
	writeJSON(w, http.StatusOK, o)
}
