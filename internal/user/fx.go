package user

import (
	"github.com/smallbiznis/cliprail/internal/user/repository"
	"github.com/smallbiznis/cliprail/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
