package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextRole)
		if !ok {
			response.Unauthorized(c, "missing participant context")
			c.Abort()
			return
		}
		role, _ := roleVal.(models.Role)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// SelfOrAdmin allows admins, or the participant named by the :id path parameter.
func SelfOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, role, ok := Identity(c)
		if !ok {
			response.Unauthorized(c, "missing participant context")
			c.Abort()
			return
		}
		if role != models.RoleAdmin && c.Param("id") != id.String() {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
