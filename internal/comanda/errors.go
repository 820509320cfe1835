package comanda

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("operation not allowed in current order status")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNoOpenCashier     = errors.New("no open cashier session for operator")

	ErrSessionAlreadyOpen = errors.New("cashier session already open for operator")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrModifierSelection  = errors.New("modifier selection violates group constraints")
	ErrInvalidInput       = errors.New("invalid input")
)
