package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/estatevest/platform/internal/models"
	"github.com/estatevest/platform/pkg/errors"
	"github.com/estatevest/platform/pkg/metrics"
	"github.com/estatevest/platform/pkg/response"
)

// RequireRole allows the request through only when the authenticated role is one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, permitted := allowed[role]; !permitted {
			metrics.RoleChecks.WithLabelValues(role.String(), "denied").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		metrics.RoleChecks.WithLabelValues(role.String(), "allowed").Inc()
		c.Next()
	}
}
