package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/models"
	"github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/response"
)

// ContextUserKey is the gin context key holding the authenticated claims.
const ContextUserKey = "auth_claims"

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT authenticates requests from the Authorization bearer header and
// stores the parsed claims in the request context.
func JWT(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errors.Clone(errors.ErrUnauthorized, "missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errors.Clone(errors.ErrUnauthorized, "malformed authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// ClaimsFromContext retrieves the authenticated claims stored by JWT.
func ClaimsFromContext(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
