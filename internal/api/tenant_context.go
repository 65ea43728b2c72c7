package api

import (
	"context"
	"net/http"
	"os"

	"github.com/ignite/prospect-pipeline/internal/pkg/httputil"
)

type tenantContextKey struct{}

// defaultDevTenant is used only when dev mode is on and the request
// carries no tenant at all.
const defaultDevTenant = "00000000-0000-0000-0000-000000000001"

// TenantMiddleware resolves the tenant for every API request.
// Priority: X-Tenant-ID header, then the tenant_id query param, then (dev
// mode only) DEFAULT_TENANT_ID or the built-in dev tenant. Production
// requests without a tenant are rejected.
func TenantMiddleware(devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := r.Header.Get("X-Tenant-ID")
			if tenant == "" {
				tenant = r.URL.Query().Get("tenant_id")
			}
			if tenant == "" && devMode {
				tenant = os.Getenv("DEFAULT_TENANT_ID")
				if tenant == "" {
					tenant = defaultDevTenant
				}
			}
			if tenant == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing tenant")
				return
			}
			ctx := context.WithValue(r.Context(), tenantContextKey{}, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext returns the tenant id the middleware resolved.
func TenantFromContext(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantContextKey{}).(string)
	return tenant
}
