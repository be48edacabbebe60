package notify

import (
	"context"

	"github.com/smallbiznis/cliprail/internal/config"
	obsmetrics "github.com/smallbiznis/cliprail/internal/observability/metrics"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("notify",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Users     userdomain.Repository
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

// New builds the process-wide notifier. Without a bot token events are
// discarded.
func New(p Params) Notifier {
	if p.Cfg.Notify.TelegramToken == "" {
		p.Log.Named("notify").Info("telegram token not configured, notifications disabled")
		return NoOp()
	}

	sender := NewTelegram(nil, p.Cfg.Notify.TelegramBaseURL, p.Cfg.Notify.TelegramToken, p.DB, p.Users)
	async := NewAsync(sender, p.Log, p.Cfg.Notify.QueueSize, p.Cfg.Notify.SendTimeout, p.Metrics)
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			async.Start()
			return nil
		},
		OnStop: async.Stop,
	})
	return async
}
