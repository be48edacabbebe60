package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/config"
	"github.com/smallbiznis/cliprail/internal/observability"
	"github.com/smallbiznis/cliprail/internal/server"
	"github.com/smallbiznis/cliprail/pkg/db"
	"go.uber.org/fx"
)

// HTTP only. Accrual runs in apps/scheduler; /admin/accrual/run still works
// here and shares the Redis cycle lock with it.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
