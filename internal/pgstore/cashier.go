package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/barcomanda/comanda-backend/internal/comanda"
)

const sessionColumns = `id, opened_by, initial_amount, opened_at, closed_at`

func scanSession(row pgx.Row) (*comanda.CashierSession, error) {
	var s comanda.CashierSession
	err := row.Scan(&s.ID, &s.OpenedByID, &s.InitialAmount, &s.OpenedAt, &s.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, comanda.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// OpenCashier relies on the partial unique index over (opened_by) WHERE
// closed_at IS NULL, so two concurrent opens can never both succeed.
func (s *Store) OpenCashier(ctx context.Context, sess *comanda.CashierSession) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO cashier_sessions(id, opened_by, initial_amount, opened_at)
		VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.OpenedByID, sess.InitialAmount, sess.OpenedAt)
	if isUniqueViolation(err) {
		return comanda.ErrSessionAlreadyOpen
	}
	return err
}

func (s *Store) GetCashierSession(ctx context.Context, sessionID string) (*comanda.CashierSession, error) {
	return scanSession(s.DB.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM cashier_sessions WHERE id=$1`, sessionID))
}

func (s *Store) OpenSessionFor(ctx context.Context, operatorID string) (*comanda.CashierSession, error) {
	sess, err := scanSession(s.DB.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM cashier_sessions WHERE opened_by=$1 AND closed_at IS NULL`, operatorID))
	if errors.Is(err, comanda.ErrNotFound) {
		return nil, comanda.ErrNoOpenCashier
	}
	return sess, err
}

func (s *Store) CloseCashierSession(ctx context.Context, sessionID string) (*comanda.CashierSession, error) {
	sess, err := scanSession(s.DB.QueryRow(ctx, `
		UPDATE cashier_sessions SET closed_at=now() WHERE id=$1 AND closed_at IS NULL
		RETURNING `+sessionColumns, sessionID))
	if errors.Is(err, comanda.ErrNotFound) {
		// distinguish "gone" from "already closed"
		if _, gerr := s.GetCashierSession(ctx, sessionID); gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("%w: session already closed", comanda.ErrInvalidState)
	}
	return sess, err
}
