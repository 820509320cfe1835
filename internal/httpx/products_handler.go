package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/barcomanda/comanda-backend/internal/comanda"
)

type ProductsHandler struct {
	Engine   *comanda.Engine
	Validate *validator.Validate
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(Identity)
		r.Get("/products", h.list)
		r.Post("/products", h.create)
		r.Post("/products/{id}/stock", h.creditStock)
	})
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Engine.ListProducts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if ps == nil {
		ps = []comanda.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

type createProductReq struct {
	Name         string          `json:"name" validate:"required,max=120"`
	Unit         string          `json:"unit" validate:"required,max=16"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	IsComposite  bool            `json:"is_composite"`
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := decodeBody(r, &req, h.Validate); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p := &comanda.Product{
		Name:         req.Name,
		Unit:         req.Unit,
		SellingPrice: req.SellingPrice,
		IsComposite:  req.IsComposite,
		Active:       true,
	}
	if err := h.Engine.CreateProduct(ctx, p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type creditStockReq struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// creditStock is the purchase-intake endpoint; it only ever increments.
func (h *ProductsHandler) creditStock(w http.ResponseWriter, r *http.Request) {
	var req creditStockReq
	if err := decodeBody(r, &req, h.Validate); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st, err := h.Engine.CreditStock(ctx, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
