package router // router wires HTTP routes to their handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-reservation/internal/handler"
	"github.com/iliyamo/hall-reservation/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers authentication routes.  Register, login and the
// refresh endpoints live under /v1/auth and need no session; /v1/me sits
// behind the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout works with either a bearer token (all sessions) or a
	// refresh_token in the body (one session), so it stays outside the
	// JWT middleware.
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated browse endpoints: halls
// and resources can be inspected by anyone before registering.
func RegisterPublic(e *echo.Echo, h *handler.HallHandler, r *handler.ResourceHandler) {
	e.GET("/v1/halls", h.List)
	e.GET("/v1/halls/:id", h.Get)
	e.GET("/v1/resources", r.List)
}
