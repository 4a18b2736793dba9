package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/quotaapp/searchd/internal/clock"
	"github.com/quotaapp/searchd/internal/config"
	"github.com/quotaapp/searchd/internal/migration"
	"github.com/quotaapp/searchd/internal/observability"
	"github.com/quotaapp/searchd/internal/scheduler"
	"github.com/quotaapp/searchd/internal/server"
	"github.com/quotaapp/searchd/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		scheduler.Module,
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
