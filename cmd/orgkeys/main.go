package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgkeys/internal/clock"
	"github.com/smallbiznis/orgkeys/internal/config"
	"github.com/smallbiznis/orgkeys/internal/migration"
	"github.com/smallbiznis/orgkeys/internal/observability"
	"github.com/smallbiznis/orgkeys/internal/server"
	"github.com/smallbiznis/orgkeys/pkg/db"
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

		// HTTP surface and the domain modules it mounts
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
