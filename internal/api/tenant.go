package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/zntrlhub/engage/internal/pkg/httputil"
	"github.com/zntrlhub/engage/internal/tenant"
)

// AccountHeader carries the calling account on every tenant-scoped route.
const AccountHeader = "X-Account-ID"

// TenantContextKey is the context key for the request tenant.
type TenantContextKey struct{}

// TenantMiddleware resolves the account from AccountHeader and rejects the
// request when it is missing or malformed.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(AccountHeader)
		if raw == "" {
			httputil.ErrorWithCode(w, http.StatusUnauthorized, "missing_account", AccountHeader+" header is required", nil)
			return
		}
		tc, err := tenant.Parse(raw)
		if err != nil {
			if errors.Is(err, tenant.ErrMissingTenant) {
				httputil.ErrorWithCode(w, http.StatusUnauthorized, "missing_account", AccountHeader+" header is required", nil)
				return
			}
			httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid_account", "invalid "+AccountHeader+" header", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tc)))
	})
}

// WithTenant stores tc on ctx.
func WithTenant(ctx context.Context, tc tenant.Context) context.Context {
	return context.WithValue(ctx, TenantContextKey{}, tc)
}

// TenantFrom returns the tenant stored by TenantMiddleware. The zero
// Context is returned outside the middleware; services reject it.
func TenantFrom(ctx context.Context) tenant.Context {
	tc, _ := ctx.Value(TenantContextKey{}).(tenant.Context)
	return tc
}
