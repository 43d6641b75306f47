package accesscode

import (
	"github.com/smallbiznis/homeaccess/internal/accesscode/repository"
	"github.com/smallbiznis/homeaccess/internal/accesscode/service"
	"go.uber.org/fx"
)

var Module = fx.Module("accesscode.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewRandomGenerator),
	fx.Provide(service.NewService),
)
