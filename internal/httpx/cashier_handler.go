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

type CashierHandler struct {
	Engine   *comanda.Engine
	Validate *validator.Validate
}

func (h *CashierHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(Identity)
		r.Post("/cashier/open", h.open)
		r.Post("/cashier/{id}/close", h.close)
	})
}

type openCashierReq struct {
	InitialAmount decimal.Decimal `json:"initial_amount"`
}

func (h *CashierHandler) open(w http.ResponseWriter, r *http.Request) {
	var req openCashierReq
	if err := decodeBody(r, &req, h.Validate); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s, err := h.Engine.OpenCashier(ctx, req.InitialAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *CashierHandler) close(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s, err := h.Engine.CloseCashier(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
