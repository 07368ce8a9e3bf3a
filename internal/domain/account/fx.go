package account

import (
	"go.uber.org/fx"

	"github.com/Theoretician9/content-factory-sub003/internal/domain/account/repository/postgres"
)

// Module provides account persistence components for fx DI
var Module = fx.Module("account",
	fx.Provide(
		postgres.NewRepository,
		postgres.NewRecoveryQueue,
	),
)
