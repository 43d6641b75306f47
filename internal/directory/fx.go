package directory

import (
	"github.com/smallbiznis/homeaccess/internal/directory/repository"
	"github.com/smallbiznis/homeaccess/internal/directory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("directory.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
