package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/barcomanda/comanda-backend/internal/comanda"
)

func (s *Store) CreateOrder(ctx context.Context, o *comanda.Order) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO orders(id, table_id, label, status, subtotal, discount, tip, total, waiter_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		o.ID, o.TableID, o.Label, o.Status, o.Subtotal, o.Discount, o.Tip, o.Total, o.WaiterID, o.CreatedAt)
	return err
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*comanda.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		return nil, err
	}
	o.Items, err = loadItems(ctx, s.DB, orderID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, status comanda.Status) ([]comanda.Order, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []comanda.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Items, err = loadItems(ctx, s.DB, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) AddItem(ctx context.Context, orderID string, item *comanda.OrderItem) (*comanda.Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != comanda.StatusOpen {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}

	if err := reserveStock(ctx, tx, item.ProductID, item.Quantity, orderID); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_items(id, order_id, product_id, product_name, quantity, unit_price, is_courtesy, note, fulfilled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)`,
		item.ID, orderID, item.ProductID, item.ProductName, item.Quantity,
		item.UnitPrice, item.IsCourtesy, item.Note); err != nil {
		return nil, err
	}
	for pos, m := range item.Modifiers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_item_modifiers(id, order_item_id, modifier_item_id, name, price_extra, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, item.ID, m.ModifierItemID, m.Name, m.PriceExtra, pos); err != nil {
			return nil, err
		}
	}

	if err := recompute(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) RemoveItem(ctx context.Context, orderID, itemID string) (*comanda.Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != comanda.StatusOpen {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}

	var productID string
	var qty int
	err = tx.QueryRow(ctx,
		`SELECT product_id, quantity FROM order_items WHERE id=$1 AND order_id=$2`,
		itemID, orderID).Scan(&productID, &qty)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: item %s", comanda.ErrNotFound, itemID)
		}
		return nil, err
	}

	if err := releaseStock(ctx, tx, productID, qty, comanda.MovementReturn, orderID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE id=$1`, itemID); err != nil {
		return nil, err
	}

	if err := recompute(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) SetCourtesy(ctx context.Context, orderID, itemID string, courtesy bool) (*comanda.Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != comanda.StatusOpen {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}

	ct, err := tx.Exec(ctx,
		`UPDATE order_items SET is_courtesy=$3 WHERE id=$2 AND order_id=$1`,
		orderID, itemID, courtesy)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: item %s", comanda.ErrNotFound, itemID)
	}

	if err := recompute(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) SetAdjustments(ctx context.Context, orderID string, discount, tip decimal.Decimal) (*comanda.Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != comanda.StatusOpen {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}

	o.Discount, o.Tip = discount, tip
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET discount=$2, tip=$3, updated_at=now() WHERE id=$1`,
		orderID, discount, tip); err != nil {
		return nil, err
	}

	if err := recompute(ctx, tx, o); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) MarkItemFulfilled(ctx context.Context, orderID, itemID string) (*comanda.OrderItem, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}

	var it comanda.OrderItem
	err = tx.QueryRow(ctx, `
		UPDATE order_items SET fulfilled=true WHERE id=$2 AND order_id=$1
		RETURNING id, order_id, product_id, product_name, quantity, unit_price, is_courtesy, note, fulfilled`,
		orderID, itemID).Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
		&it.Quantity, &it.UnitPrice, &it.IsCourtesy, &it.Note, &it.Fulfilled)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: item %s", comanda.ErrNotFound, itemID)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *Store) CloseOrder(ctx context.Context, orderID string) (*comanda.Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !comanda.CanTransition(o.Status, comanda.StatusClosed) {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}

	err = tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, closed_at=now(), updated_at=now() WHERE id=$1
		RETURNING status, closed_at, updated_at`,
		orderID, comanda.StatusClosed).Scan(&o.Status, &o.ClosedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.Items, err = loadItems(ctx, tx, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// CancelOrder reverses every reserved quantity, then deletes the items and
// the order itself, all in one transaction.
func (s *Store) CancelOrder(ctx context.Context, orderID string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !comanda.CanTransition(o.Status, comanda.StatusCancelled) {
		return fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}

	items, err := loadItems(ctx, tx, orderID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := releaseStock(ctx, tx, it.ProductID, it.Quantity, comanda.MovementCancel, orderID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) RecordPayment(ctx context.Context, p *comanda.Payment) (*comanda.Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if !comanda.CanTransition(o.Status, comanda.StatusPaid) {
		return nil, fmt.Errorf("%w: order is %s", comanda.ErrInvalidState, o.Status)
	}

	p.Amount = o.Total
	err = tx.QueryRow(ctx, `
		INSERT INTO payments(id, order_id, cashier_session_id, method, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		p.ID, p.OrderID, p.CashierSessionID, p.Method, p.Amount).Scan(&p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: order already settled", comanda.ErrInvalidState)
		}
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, closed_at=COALESCE(closed_at, now()), updated_at=now() WHERE id=$1
		RETURNING status, closed_at, updated_at`,
		p.OrderID, comanda.StatusPaid).Scan(&o.Status, &o.ClosedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.Items, err = loadItems(ctx, tx, p.OrderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}
