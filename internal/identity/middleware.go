package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxVendorID = "trustchain_vendor_id"

// RequireVendorToken returns a Gin middleware that enforces a valid vendor
// Bearer token and injects the vendor ID into the context.
func RequireVendorToken(tokens *VendorTokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Not authenticated",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		vendorID, _ := claims.VendorID()
		c.Set(ctxVendorID, vendorID)
		c.Next()
	}
}

// VendorIDFromCtx retrieves the vendor ID injected by RequireVendorToken.
func VendorIDFromCtx(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxVendorID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
