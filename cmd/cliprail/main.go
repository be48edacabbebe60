package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/config"
	"github.com/smallbiznis/cliprail/internal/migration"
	"github.com/smallbiznis/cliprail/internal/observability"
	"github.com/smallbiznis/cliprail/internal/scheduler"
	"github.com/smallbiznis/cliprail/internal/server"
	"github.com/smallbiznis/cliprail/pkg/db"
	"go.uber.org/fx"
)

// Single process: HTTP API plus the accrual loop.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domains, routes and the manual accrual trigger
		server.Module,

		// Background accrual cycle; server.Module already provides the scheduler.
		fx.Invoke(scheduler.NewScheduler),
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
