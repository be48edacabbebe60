package stats

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/cliprail/internal/config"
	"github.com/smallbiznis/cliprail/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("stats.provider",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

// New assembles the provider stack: the hosted API first when configured,
// then yt-dlp, each call bounded, measured and cached.
func New(p Params) Provider {
	cfg := p.Cfg.Stats
	timeout := p.Cfg.Accrual.FetchTimeout

	var providers []Provider
	if cfg.APIBaseURL != "" {
		providers = append(providers, Instrumented(NewHTTPAPI(cfg.APIBaseURL, cfg.APIKey, timeout), metrics.Accrual()))
	}
	if cfg.YTDLPPath != "" {
		providers = append(providers, Instrumented(NewYTDLP(cfg.YTDLPPath), metrics.Accrual()))
	}

	p.Log.Named("stats").Info("stats providers configured",
		zap.Int("providers", len(providers)),
		zap.Bool("cache", p.Redis != nil),
	)
	return Cached(WithTimeout(Chain(providers...), timeout), p.Redis, cfg.CacheTTL, p.Log.Named("stats"))
}
