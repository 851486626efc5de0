package plan

import (
	"github.com/menuvia/menuvia/internal/plan/repository"
	"github.com/menuvia/menuvia/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
