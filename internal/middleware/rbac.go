package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/response"
)

// RequireRole lets through only tokens carrying the given role.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if claims.Role == role {
			c.Next()
			return
		}

		switch role {
		case model.RoleStudent:
			response.AbortFail(c, http.StatusForbidden, response.ErrStudentAccessOnly)
		case model.RoleAdmin:
			response.AbortFail(c, http.StatusForbidden, response.ErrAdminAccessOnly)
		default:
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
		}
	}
}
