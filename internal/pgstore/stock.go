package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/barcomanda/comanda-backend/internal/comanda"
)

// CreditStock is purchase intake: unconditional increment, row created on
// first purchase. The PURCHASE movement lands in the same transaction.
func (s *Store) CreditStock(ctx context.Context, productID string, qty int, referenceID string) (*comanda.Stock, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var st comanda.Stock
	err = tx.QueryRow(ctx, `
		INSERT INTO stock (product_id, quantity_current)
		VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE
			SET quantity_current = stock.quantity_current + EXCLUDED.quantity_current,
			    updated_at = now()
		RETURNING product_id, quantity_current, updated_at`, productID, qty).
		Scan(&st.ProductID, &st.QuantityCurrent, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := insertMovement(ctx, tx, productID, comanda.MovementPurchase, qty,
		st.QuantityCurrent-qty, st.QuantityCurrent, referenceID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) GetStock(ctx context.Context, productID string) (*comanda.Stock, error) {
	var st comanda.Stock
	err := s.DB.QueryRow(ctx,
		`SELECT product_id, quantity_current, updated_at FROM stock WHERE product_id=$1`, productID).
		Scan(&st.ProductID, &st.QuantityCurrent, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: stock for product %s", comanda.ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
