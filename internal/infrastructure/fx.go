package infrastructure

import (
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/database"
	httpfx "github.com/Theoretician9/content-factory-sub003/internal/infrastructure/http"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/kafka"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/logger"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/metrics"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/redis"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/redislock"
)

// Module aggregates all infrastructure modules
var Module = fx.Module("infrastructure",
	logger.Module,
	database.Module,
	metrics.Module,
	redis.Module,
	redislock.Module, // Must be after redis.Module (depends on *redis.Client)
	kafka.Module,
	httpfx.Module,
)
