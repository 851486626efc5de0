package subscription

import (
	"github.com/menuvia/menuvia/internal/subscription/repository"
	"github.com/menuvia/menuvia/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
