package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/barcomanda/comanda-backend/internal/comanda"
)

func (s *Store) CreateProduct(ctx context.Context, p *comanda.Product) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products(id, name, unit, selling_price, is_composite, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		p.ID, p.Name, p.Unit, p.SellingPrice, p.IsComposite, p.Active, p.CreatedAt)
	return err
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*comanda.Product, error) {
	var p comanda.Product
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, unit, selling_price, is_composite, active, created_at, updated_at
		FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.Name, &p.Unit, &p.SellingPrice, &p.IsComposite, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", comanda.ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]comanda.Product, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, unit, selling_price, is_composite, active, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []comanda.Product
	for rows.Next() {
		var p comanda.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.SellingPrice, &p.IsComposite, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ModifierGroupsFor(ctx context.Context, productID string) ([]comanda.ModifierGroup, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, product_id, name, min_select, max_select
		FROM modifier_groups WHERE product_id=$1 ORDER BY name`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []comanda.ModifierGroup
	idx := map[string]int{}
	for rows.Next() {
		var g comanda.ModifierGroup
		if err := rows.Scan(&g.ID, &g.ProductID, &g.Name, &g.MinSelect, &g.MaxSelect); err != nil {
			return nil, err
		}
		idx[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return groups, nil
	}

	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	irows, err := s.DB.Query(ctx, `
		SELECT id, group_id, name, price_extra
		FROM modifier_items WHERE group_id = ANY($1) ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	defer irows.Close()
	for irows.Next() {
		var mi comanda.ModifierItem
		if err := irows.Scan(&mi.ID, &mi.GroupID, &mi.Name, &mi.PriceExtra); err != nil {
			return nil, err
		}
		groups[idx[mi.GroupID]].Items = append(groups[idx[mi.GroupID]].Items, mi)
	}
	return groups, irows.Err()
}
