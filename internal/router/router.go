// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/clinic-slot-reservation/internal/config"
	"github.com/iliyamo/clinic-slot-reservation/internal/handler"
	"github.com/iliyamo/clinic-slot-reservation/internal/middleware"
)

// RegisterRoutes registers routes that carry no middleware on the
// provided Echo instance.  Currently it exposes only a health check
// used by load balancers and monitoring systems.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the /v1 API surface.  The whole group sits
// behind the Redis token-bucket rate limiter; the read-heavy slot
// listing endpoints additionally go through the Redis response cache.
// When rdb is nil both middlewares become pass-throughs.
func RegisterAPI(e *echo.Echo, p *handler.ProviderHandler, s *handler.SlotHandler, r *handler.ReservationHandler, rdb *redis.Client) {
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	g := e.Group("/v1", rl)

	// Provider administration.
	g.POST("/providers", p.CreateProvider)
	g.GET("/providers", p.ListProviders)
	g.GET("/providers/:id", p.GetProvider)
	g.PUT("/providers/:id", p.UpdateProvider)
	g.DELETE("/providers/:id", p.DeleteProvider)

	// Slot administration and browsing.  Listings are cacheable; the
	// availability they show is advisory and re-checked under lock on
	// claim, so a short cache TTL is safe.
	g.POST("/providers/:id/slots", s.CreateSlot)
	g.GET("/providers/:id/slots", s.ListProviderSlots, cache)
	g.GET("/slots", s.ListOpenSlots, cache)
	g.DELETE("/slots/:id", s.DeleteSlot)

	// Reservations.  The stats route must be registered before the
	// parameterised one so "stats" is not parsed as an id.
	g.POST("/reservations", r.CreateReservation)
	g.GET("/reservations", r.ListReservations)
	g.GET("/reservations/stats", r.ReservationStats)
	g.GET("/reservations/:id", r.GetReservation)
	g.DELETE("/reservations/:id", r.CancelReservation)
}
