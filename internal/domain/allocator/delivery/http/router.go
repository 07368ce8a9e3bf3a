package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
)

// Router registers account pool HTTP routes
type Router struct {
	handler *Handler
	health  *HealthHandler
	logger  zerolog.Logger
}

// NewRouter creates a new account pool router
func NewRouter(handler *Handler, health *HealthHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		health:  health,
		logger:  logger,
	}
}

// RegisterRoutes registers account pool routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.POST("/api/v1/allocate", r.handler.Allocate)

	rt.POST("/api/v1/accounts", r.handler.RegisterAccount)
	rt.GET("/api/v1/accounts", r.handler.ListAccounts)
	rt.POST("/api/v1/accounts/{account_id}/release", r.handler.Release)
	rt.POST("/api/v1/accounts/{account_id}/report-error", r.handler.ReportError)
	rt.GET("/api/v1/accounts/{account_id}/ratelimit", r.handler.CheckRateLimit)
	rt.GET("/api/v1/accounts/{account_id}/health", r.handler.GetHealth)

	rt.GET("/api/v1/recovery/stats", r.handler.GetRecoveryStats)

	rt.GET("/health", r.health.Handle)

	r.logger.Info().Msg("Account pool routes registered")
}
