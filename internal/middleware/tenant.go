package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-admin-service/internal/clients"
)

// TenantMiddleware resolves the tenant and attaches the catalog credentials
// to the request context.
// SECURITY: No default tenant fallback - requests without tenant context are rejected.
// A tenant_id claim set by AuthMiddleware wins over headers.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString("tenant_id")

		if tenantID == "" {
			tenantID = c.GetHeader("X-Tenant-ID")
		}
		// storefront dashboards send the shop domain
		if tenantID == "" {
			tenantID = c.GetHeader("Retailer-Domain")
		}

		if tenantID == "" {
			abortWithError(c, http.StatusUnauthorized, "TENANT_REQUIRED",
				"Tenant ID is required. Include X-Tenant-ID or Retailer-Domain header.")
			return
		}

		c.Set("tenant_id", tenantID)

		ctx := clients.WithCredentials(c.Request.Context(), clients.Credentials{
			BearerToken: GetBearerToken(c),
			TenantID:    tenantID,
			UserID:      GetUserID(c),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetTenantID retrieves the tenant ID from gin context
func GetTenantID(c *gin.Context) string {
	return c.GetString("tenant_id")
}
