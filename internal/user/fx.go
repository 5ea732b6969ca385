package user

import (
	"github.com/nodeboard/nodeboard/internal/user/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.NewRepository),
)
