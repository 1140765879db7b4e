package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/clock"
	"github.com/stayloop/folio/internal/config"
	"github.com/stayloop/folio/internal/logger"
	"github.com/stayloop/folio/internal/migration"
	"github.com/stayloop/folio/internal/observability"
	"github.com/stayloop/folio/internal/server"
	"github.com/stayloop/folio/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
