package auth

import (
	"github.com/menuvia/menuvia/internal/auth/repository"
	"github.com/menuvia/menuvia/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
