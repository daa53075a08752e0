// Package router registers the HTTP API on an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterRoutes registers the health check and the Prometheus scrape
// endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the session endpoints.  Register, login, refresh
// and logout work without an access token; /v1/me requires one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterCatalog registers event browsing and organiser catalog
// management.  cache fronts the public reads; invalidate retires cached
// reads after an organiser changes the catalog.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, jwtSecret string, cache, invalidate echo.MiddlewareFunc) {
	e.GET("/v1/events", h.ListEvents, cache)
	e.GET("/v1/events/:slug", h.GetEvent, cache)
	e.GET("/v1/categories", h.ListCategories, cache)

	organiser := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganiser),
		invalidate,
	}
	e.POST("/v1/events", h.CreateEvent, organiser...)
	e.POST("/v1/events/:slug/tiers", h.CreateTier, organiser...)
}

// RegisterOrders registers checkout and payment verification.  Guests may
// buy; a valid access token only attaches the buyer.  limiter throttles
// the endpoints that reach the payment gateway.
func RegisterOrders(e *echo.Echo, h *handler.OrderHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	e.POST("/v1/events/:slug/orders", h.Create, middleware.OptionalJWT(jwtSecret), limiter)
	e.GET("/v1/orders/:order_id/summary", h.Summary)
	e.GET("/v1/orders/:order_id/verify", h.Verify, limiter)
	e.GET("/v1/orders/:order_id/verify/:reference", h.Verify, limiter)
}

// RegisterTickets registers redemption lookups and organiser check-in.
func RegisterTickets(e *echo.Echo, h *handler.TicketHandler, jwtSecret string) {
	e.GET("/v1/events/:slug/tickets/:code", h.Get)
	e.GET("/v1/events/:slug/tickets/:code/qr", h.Image)

	organiser := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganiser),
	}
	e.GET("/v1/events/:slug/tickets", h.List, organiser...)
	e.PATCH("/v1/events/:slug/tickets/:code", h.Checkin, organiser...)
}

// RegisterWallet registers the signed-in user's wallet endpoints.
func RegisterWallet(e *echo.Echo, h *handler.WalletHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/wallet", middleware.JWTAuth(jwtSecret))
	g.GET("", h.Balance)
	g.POST("/deposit", h.Deposit, limiter)
	g.GET("/deposit/verify/:reference", h.VerifyDeposit, limiter)
}
