package project

import (
	"github.com/nodeboard/nodeboard/internal/project/repository"
	"github.com/nodeboard/nodeboard/internal/project/service"
	"go.uber.org/fx"
)

var Module = fx.Module("project.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
