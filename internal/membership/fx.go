package membership

import (
	"github.com/nodeboard/nodeboard/internal/membership/repository"
	"github.com/nodeboard/nodeboard/internal/membership/service"
	"go.uber.org/fx"
)

var Module = fx.Module("membership.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
