package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"profile-api/internal/core/auth"
	resp "profile-api/internal/transport/http/response"
)

// Context keys set by AuthJWT.
const (
	CtxClaims = "claims"
	CtxUserID = "userId"
	CtxRole   = "role"
)

// AuthJWT rejects requests without a valid bearer token. requireRole, when
// set, must match the token's role.
func AuthJWT(v auth.Verifier, requireRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(resp.CodeUnauthorized, resp.Error(resp.CodeUnauthorized, "missing token"))
			return
		}
		claims, err := v.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(resp.CodeUnauthorized, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		if requireRole != "" && claims.Role != requireRole {
			c.AbortWithStatusJSON(resp.CodeForbidden, resp.Error(resp.CodeForbidden, "forbidden"))
			return
		}
		c.Set(CtxClaims, claims)
		c.Set(CtxUserID, claims.UID)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}
