package audit

import (
	"github.com/menuvia/menuvia/internal/audit/repository"
	"github.com/menuvia/menuvia/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
