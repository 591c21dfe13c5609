package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/connect-event/backend/internal/auth"
	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/pkg/response"
)

const (
	// ContextParticipantID is the key for participant ID in gin context.
	ContextParticipantID = "participant_id"
	// ContextRole is the key for participant role in gin context.
	ContextRole = "participant_role"
	// ContextEmail is the key for participant email in gin context.
	ContextEmail = "participant_email"
)

// JWT returns a middleware that validates JWT and sets participant claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		claims, ok := parseBearer(jwtService, header)
		if !ok {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWT sets participant claims when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalJWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			if claims, ok := parseBearer(jwtService, header); ok {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

func parseBearer(jwtService *auth.JWTService, header string) (*auth.Claims, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}
	claims, err := jwtService.Validate(parts[1])
	if err != nil {
		return nil, false
	}
	return claims, true
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextParticipantID, claims.ParticipantID)
	c.Set(ContextRole, claims.Role)
	c.Set(ContextEmail, claims.Email)
}

// Identity returns the authenticated participant and role, if any.
func Identity(c *gin.Context) (uuid.UUID, models.Role, bool) {
	v, ok := c.Get(ContextParticipantID)
	if !ok {
		return uuid.Nil, "", false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	role, _ := c.Get(ContextRole)
	r, _ := role.(models.Role)
	return id, r, true
}
