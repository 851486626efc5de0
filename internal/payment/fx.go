package payment

import (
	"github.com/menuvia/menuvia/internal/payment/repository"
	paymentservice "github.com/menuvia/menuvia/internal/payment/service"
	"github.com/menuvia/menuvia/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
