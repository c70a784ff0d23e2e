package middleware

import (
	"github.com/gin-gonic/gin"

	midsec "TeleProject/middleware/security"
	sec "TeleProject/tools/security"
)

// RouteOpt configures per-route behavior.
type RouteOpt struct {
	IsAuth bool
}

var authOpts midsec.Options

// Configure sets the JWT options used by authenticated routes. Call once
// from main() before registering routes.
func Configure(jwtOpts sec.Options) {
	authOpts = midsec.Options{JwtOpts: jwtOpts}
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	register(r.GET, path, handler, opt)
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	register(r.POST, path, handler, opt)
}

func PUT(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	register(r.PUT, path, handler, opt)
}

func DELETE(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	register(r.DELETE, path, handler, opt)
}

func register(method func(string, ...gin.HandlerFunc) gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		method(path, midsec.Middleware(authOpts), handler)
	} else {
		method(path, handler)
	}
}
