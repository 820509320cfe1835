package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barcomanda/comanda-backend/internal/comanda"
)

// Store implements comanda.Store on postgres. Every mutating order operation
// runs as one transaction: the order row is locked first (FOR UPDATE) so
// operations against a single comanda serialize, and stock is only ever
// touched through conditional updates.
type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

var _ comanda.Store = (*Store)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const orderColumns = `id, table_id, label, status, subtotal, discount, tip, total, waiter_id, created_at, updated_at, closed_at`

func scanOrder(row pgx.Row) (*comanda.Order, error) {
	var o comanda.Order
	err := row.Scan(&o.ID, &o.TableID, &o.Label, &o.Status, &o.Subtotal, &o.Discount,
		&o.Tip, &o.Total, &o.WaiterID, &o.CreatedAt, &o.UpdatedAt, &o.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, comanda.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// lockOrder serializes all mutations of one comanda and re-reads its status
// inside the transaction.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (*comanda.Order, error) {
	return scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
}

func loadItems(ctx context.Context, q querier, orderID string) ([]comanda.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, is_courtesy, note, fulfilled
		FROM order_items WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []comanda.OrderItem
	idx := map[string]int{}
	for rows.Next() {
		var it comanda.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.IsCourtesy, &it.Note, &it.Fulfilled); err != nil {
			return nil, err
		}
		idx[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	mrows, err := q.Query(ctx, `
		SELECT id, order_item_id, modifier_item_id, name, price_extra
		FROM order_item_modifiers WHERE order_item_id = ANY($1) ORDER BY position`, ids)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var m comanda.ModifierSelection
		if err := mrows.Scan(&m.ID, &m.OrderItemID, &m.ModifierItemID, &m.Name, &m.PriceExtra); err != nil {
			return nil, err
		}
		items[idx[m.OrderItemID]].Modifiers = append(items[idx[m.OrderItemID]].Modifiers, m)
	}
	return items, mrows.Err()
}

// recompute re-reads the item list inside the same transaction and persists
// the derived totals on the order row.
func recompute(ctx context.Context, tx pgx.Tx, o *comanda.Order) error {
	items, err := loadItems(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	o.Items = items
	o.Subtotal, o.Total = comanda.Recompute(items, o.Discount, o.Tip)
	_, err = tx.Exec(ctx,
		`UPDATE orders SET subtotal=$2, total=$3, updated_at=now() WHERE id=$1`,
		o.ID, o.Subtotal, o.Total)
	return err
}

func insertMovement(ctx context.Context, tx pgx.Tx, productID, typ string, qty, before, after int, refID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements(id, product_id, type, quantity, before_qty, after_qty, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
		uuid.NewString(), productID, typ, qty, before, after, refID)
	return err
}

// reserveStock is the conditional decrement closing the check-then-act race:
// the WHERE clause guards quantity_current, a missing row counts as zero.
func reserveStock(ctx context.Context, tx pgx.Tx, productID string, qty int, orderID string) error {
	var after int
	err := tx.QueryRow(ctx, `
		UPDATE stock SET quantity_current = quantity_current - $2, updated_at = now()
		WHERE product_id = $1 AND quantity_current >= $2
		RETURNING quantity_current`, productID, qty).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: product %s needs %d", comanda.ErrInsufficientStock, productID, qty)
	}
	if err != nil {
		return err
	}
	return insertMovement(ctx, tx, productID, comanda.MovementSale, -qty, after+qty, after, orderID)
}

// releaseStock is unconditional; no upper bound against purchased quantity.
func releaseStock(ctx context.Context, tx pgx.Tx, productID string, qty int, movementType, orderID string) error {
	var after int
	err := tx.QueryRow(ctx, `
		INSERT INTO stock (product_id, quantity_current)
		VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE
			SET quantity_current = stock.quantity_current + EXCLUDED.quantity_current,
			    updated_at = now()
		RETURNING quantity_current`, productID, qty).Scan(&after)
	if err != nil {
		return err
	}
	return insertMovement(ctx, tx, productID, movementType, qty, after-qty, after, orderID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
