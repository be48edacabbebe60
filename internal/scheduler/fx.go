package scheduler

import (
	"context"

	"github.com/smallbiznis/cliprail/internal/accrual"
	"go.uber.org/fx"
)

// Providers build the scheduler without starting its loop, for processes that
// only trigger cycles on demand.
var Providers = fx.Options(
	fx.Provide(ProvideConfig),
	fx.Provide(provideRunner),
	fx.Provide(New),
)

var Module = fx.Module("scheduler",
	Providers,
	fx.Invoke(NewScheduler),
)

func provideRunner(engine *accrual.Engine) CycleRunner {
	return engine
}

func NewScheduler(lc fx.Lifecycle, cfg Config, sched *Scheduler) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
