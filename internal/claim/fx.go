package claim

import (
	"github.com/smallbiznis/homeaccess/internal/claim/service"
	"go.uber.org/fx"
)

var Module = fx.Module("claim.service",
	fx.Provide(service.NewService),
)
