package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cliprail/internal/accrual"
	"github.com/smallbiznis/cliprail/internal/clip"
	"github.com/smallbiznis/cliprail/internal/clock"
	"github.com/smallbiznis/cliprail/internal/config"
	"github.com/smallbiznis/cliprail/internal/ledger"
	"github.com/smallbiznis/cliprail/internal/migration"
	"github.com/smallbiznis/cliprail/internal/notify"
	"github.com/smallbiznis/cliprail/internal/observability"
	"github.com/smallbiznis/cliprail/internal/offer"
	"github.com/smallbiznis/cliprail/internal/payout"
	"github.com/smallbiznis/cliprail/internal/ratelimit"
	"github.com/smallbiznis/cliprail/internal/scheduler"
	"github.com/smallbiznis/cliprail/internal/stats"
	"github.com/smallbiznis/cliprail/internal/user"
	"github.com/smallbiznis/cliprail/pkg/db"
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

		// Domain services required by the accrual cycle
		ratelimit.Module,
		notify.Module,
		stats.Module,
		user.Module,
		offer.Module,
		clip.Module,
		ledger.Module,
		payout.Module,
		accrual.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
