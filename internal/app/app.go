package app

import (
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/config"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/account"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/allocator"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/maintenance"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/ratelimit"
	"github.com/Theoretician9/content-factory-sub003/internal/domain/recovery"
	"github.com/Theoretician9/content-factory-sub003/internal/infrastructure"
)

// CreateApp creates the fx application options
func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(
			config.Out,
		),
		infrastructure.Module,
		// Domain modules
		account.Module,
		ratelimit.Module,
		recovery.Module,
		allocator.Module,   // Must be after recovery.Module (depends on classifier and sweeper)
		maintenance.Module, // Must be after recovery.Module (depends on sweeper)
	)
}
