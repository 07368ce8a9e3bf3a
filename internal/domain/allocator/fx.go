package allocator

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/config"
	allochttp "github.com/Theoretician9/content-factory-sub003/internal/domain/allocator/delivery/http"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/allocator/usecase/business"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure/http/server"
	pkgerrors "github.com/Theoretician9/content-factory-sub003/pkg/errors"
)

// Module provides allocator components for fx DI
var Module = fx.Module("allocator",
	fx.Provide(
		NewUseCaseConfigFx,
		business.NewUseCase,
		NewMapperFx,
		allochttp.NewHandler,
		allochttp.NewHealthHandler,
		allochttp.NewRouter,
	),
	fx.Invoke(registerRoutes),
)

// NewUseCaseConfigFx builds allocator settings from configuration
func NewUseCaseConfigFx(cfg *config.AllocatorConfig) business.Config {
	return business.Config{
		DefaultLeaseTTL: cfg.DefaultLeaseTTL,
		MaxLeaseTTL:     cfg.MaxLeaseTTL,
		RetryAttempts:   cfg.RetryAttempts,
		RetryBackoff:    cfg.RetryBackoff,
	}
}

// NewMapperFx creates the domain error mapper
func NewMapperFx(logger zerolog.Logger) *pkgerrors.Mapper {
	return pkgerrors.NewMapper(logger)
}

// registerRoutes registers allocator HTTP routes on the server
func registerRoutes(srv *server.Server, router *allochttp.Router) {
	router.RegisterRoutes(srv.Router)
}
