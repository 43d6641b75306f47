package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/clock"
	"github.com/smallbiznis/homeaccess/internal/config"
	"github.com/smallbiznis/homeaccess/internal/migration"
	"github.com/smallbiznis/homeaccess/internal/observability"
	"github.com/smallbiznis/homeaccess/internal/scheduler"
	"github.com/smallbiznis/homeaccess/internal/seed"
	"github.com/smallbiznis/homeaccess/internal/server"
	"github.com/smallbiznis/homeaccess/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		seed.Module,

		// HTTP API and the claim domains it wires
		server.Module,

		// Outbox relay
		scheduler.Module,
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
