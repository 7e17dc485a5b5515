package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	apierrors "github.com/reseich/reseich-api/internal/errors"
)

// RequireCallbackToken guards workflow callback routes. The token is read from
// the `token` query parameter (as embedded in callback URLs) or a Bearer header,
// and must have been signed for kind and the route's :param value.
func RequireCallbackToken(signer *CallbackSigner, kind, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if token == "" {
			apierrors.AbortWithUnauthorized(c, "callback token is required", nil)
			return
		}

		if err := signer.Verify(token, kind, c.Param(param)); err != nil {
			apierrors.AbortWithUnauthorized(c, "invalid or expired callback token", nil)
			return
		}

		c.Next()
	}
}
