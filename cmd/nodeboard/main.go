package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/authz"
	"github.com/nodeboard/nodeboard/internal/billing"
	"github.com/nodeboard/nodeboard/internal/config"
	"github.com/nodeboard/nodeboard/internal/identity"
	"github.com/nodeboard/nodeboard/internal/logger"
	"github.com/nodeboard/nodeboard/internal/membership"
	"github.com/nodeboard/nodeboard/internal/migration"
	"github.com/nodeboard/nodeboard/internal/project"
	"github.com/nodeboard/nodeboard/internal/server"
	"github.com/nodeboard/nodeboard/internal/user"
	"github.com/nodeboard/nodeboard/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		identity.Module,

		// Functional Domains
		user.Module,
		project.Module,
		authz.Module,
		membership.Module,
		billing.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
