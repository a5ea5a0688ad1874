package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hiring-negotiation/internal/handler"
	"github.com/iliyamo/hiring-negotiation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// /healthz reports liveness and the live connection count.
func RegisterRoutes(e *echo.Echo, conns handler.ConnectionCounter) {
	e.GET("/healthz", handler.Health(conns))
}

// RegisterRealtime mounts the websocket endpoint.  Authentication happens
// over the socket with an auth frame, so only the rate limiter applies to
// the upgrade itself.
func RegisterRealtime(e *echo.Echo, gw *handler.Gateway, limit echo.MiddlewareFunc) {
	e.GET("/ws", gw.Handle, limit)
}

// RegisterRequests mounts the pull catch-up API under /v1, behind JWT
// authentication.
func RegisterRequests(e *echo.Echo, h *handler.RequestsHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), limit)
	g.GET("/requests/:id", h.Get)
}

// RegisterDev mounts development helpers.  Callers only invoke it when
// APP_ENV=dev.
func RegisterDev(e *echo.Echo, a *handler.AuthHandler) {
	e.POST("/v1/dev/token", a.DevToken)
}
