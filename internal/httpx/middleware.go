package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/barcomanda/comanda-backend/internal/comanda"
)

// Identity trusts the headers set by the authentication collaborator in
// front of this service and puts the verified identity on the context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-Id")
		role := comanda.Role(r.Header.Get("X-User-Role"))

		switch role {
		case comanda.RoleAdmin, comanda.RoleWaiter, comanda.RoleCashier:
		default:
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or unknown identity"})
			return
		}
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or unknown identity"})
			return
		}

		ctx := comanda.WithIdentity(r.Context(), comanda.Identity{UserID: userID, Role: role})
		ctx = comanda.WithTrace(ctx, middleware.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
