package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"TeleProject/tools/errs"
	sec "TeleProject/tools/security"
)

// CtxUserKey is where the middleware stores the authenticated user id;
// handlers read it back with UserID(c).
const CtxUserKey = "auth_user_id"

type Options struct {
	JwtOpts sec.Options
}

// Middleware verifies the Bearer token and resolves the caller's user id
// into the gin context. Anonymous requests are rejected.
func Middleware(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			return
		}

		userID, err := sec.Verify(opts.JwtOpts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired.WithDetail(err.Error()))
			return
		}

		c.Set(CtxUserKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserKey)
}
