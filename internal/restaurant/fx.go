package restaurant

import (
	"github.com/menuvia/menuvia/internal/restaurant/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("restaurant.repository",
	fx.Provide(repository.Provide),
)
