package middleware

import (
	"net/http"

	"github.com/erp/consignment/internal/infrastructure/logger"
	"github.com/erp/consignment/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequirePermission admits operators holding permission
func RequirePermission(permission string) gin.HandlerFunc {
	return RequireAnyPermission(permission)
}

// RequireAnyPermission admits operators holding at least one of permissions.
// It must run after the JWT middleware; a request without claims is denied.
func RequireAnyPermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims != nil && claims.HasAnyPermission(permissions...) {
			c.Next()
			return
		}

		fields := []zap.Field{
			zap.Strings("required_any", permissions),
			zap.String("route", c.FullPath()),
		}
		if claims != nil {
			fields = append(fields, zap.String("user_id", claims.UserID), zap.Strings("held", claims.Permissions))
		}
		logger.L(c.Request.Context()).Warn("Permission denied", fields...)

		c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeForbidden,
			"Access denied: insufficient permissions",
			GetRequestID(c),
		))
	}
}
