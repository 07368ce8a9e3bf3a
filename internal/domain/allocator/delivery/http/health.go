package http

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"github.com/Theoretician9/content-factory-sub003/internal/domain"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/deps"
	"github.com/Theoretician9/content-factory-sub003/pkg/httputil"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents health status of a single component
type ComponentHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the JSON response for health check
type HealthResponse struct {
	Status     HealthStatus      `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components []ComponentHealth `json:"components"`
}

// HealthHandler handles HTTP health check requests
type HealthHandler struct {
	db     *gorm.DB
	rdb    *redis.Client
	repo   deps.AccountRepository
	logger zerolog.Logger
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(db *gorm.DB, rdb *redis.Client, repo deps.AccountRepository, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		rdb:    rdb,
		repo:   repo,
		logger: logger,
	}
}

// Handle handles the health check request for fasthttp
func (h *HealthHandler) Handle(ctx *fasthttp.RequestCtx) {
	components := h.checkComponents(ctx)
	status := overallStatus(components)

	response := HealthResponse{
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Components: components,
	}

	logEvent := h.logger.Debug()
	if status == HealthStatusUnhealthy {
		logEvent = h.logger.Warn()
	} else if status == HealthStatusDegraded {
		logEvent = h.logger.Info()
	}
	logEvent.
		Str("status", string(status)).
		Interface("components", components).
		Msg("Health check completed")

	httputil.WriteHealthResponse(ctx, response, status != HealthStatusUnhealthy)
}

func (h *HealthHandler) checkComponents(ctx *fasthttp.RequestCtx) []ComponentHealth {
	components := make([]ComponentHealth, 0, 3)

	// Check PostgreSQL
	pgMsg := ""
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		pgMsg = err.Error()
	}
	components = append(components, ComponentHealth{
		Name:    "postgres",
		Healthy: err == nil,
		Message: pgMsg,
	})

	// Check Redis (lock provider backend)
	redisMsg := ""
	redisErr := h.rdb.Ping(ctx).Err()
	if redisErr != nil {
		redisMsg = redisErr.Error()
	}
	components = append(components, ComponentHealth{
		Name:    "redis",
		Healthy: redisErr == nil,
		Message: redisMsg,
	})

	// Check account pool
	poolMsg := ""
	poolHealthy := false
	counts, countErr := h.repo.CountByStatus(ctx)
	switch {
	case countErr != nil:
		poolMsg = countErr.Error()
	case counts[domain.StatusActive]+counts[domain.StatusLocked] == 0:
		poolMsg = "no allocatable accounts in the pool"
	default:
		poolHealthy = true
	}
	components = append(components, ComponentHealth{
		Name:    "account_pool",
		Healthy: poolHealthy,
		Message: poolMsg,
	})

	return components
}

// overallStatus is unhealthy when a backing store is down and degraded when
// only the account pool is empty
func overallStatus(components []ComponentHealth) HealthStatus {
	status := HealthStatusHealthy
	for _, c := range components {
		if c.Healthy {
			continue
		}
		if c.Name == "account_pool" {
			if status == HealthStatusHealthy {
				status = HealthStatusDegraded
			}
			continue
		}
		status = HealthStatusUnhealthy
	}
	return status
}
