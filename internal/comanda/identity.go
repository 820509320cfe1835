package comanda

import "context"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleWaiter  Role = "waiter"
	RoleCashier Role = "cashier"
)

func (r Role) CanManageOrders() bool { return r == RoleAdmin || r == RoleWaiter }
func (r Role) CanCheckout() bool     { return r == RoleAdmin || r == RoleCashier }

// Identity is supplied by the authentication collaborator; the core trusts it
// and only enforces role checks.
type Identity struct {
	UserID string
	Role   Role
}

type ctxKey int

const (
	identityKey ctxKey = iota
	traceKey
)

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Trace carries the request id end-to-end so events stay correlatable.
func WithTrace(ctx context.Context, trace string) context.Context {
	return context.WithValue(ctx, traceKey, trace)
}

func TraceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(traceKey).(string)
	return s
}
