package middleware

import (
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origin rejects cross-origin websocket upgrades unless the Origin header
// matches TELE_ALLOWED_ORIGINS (comma separated). An empty setting allows
// everything, which is the right default behind a trusted proxy; browsers
// always send Origin, non-browser clients usually omit it and pass.
func Origin() gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, o := range strings.Split(os.Getenv("TELE_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[strings.ToLower(o)] = true
		}
	}
	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		u, err := url.Parse(origin)
		if err != nil || !allowed[strings.ToLower(u.Host)] {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
