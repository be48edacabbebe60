package clip

import (
	"github.com/smallbiznis/cliprail/internal/clip/repository"
	"github.com/smallbiznis/cliprail/internal/clip/service"
	"go.uber.org/fx"
)

var Module = fx.Module("clip.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
