package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/menuvia/menuvia/internal/audit"
	"github.com/menuvia/menuvia/internal/clock"
	"github.com/menuvia/menuvia/internal/config"
	"github.com/menuvia/menuvia/internal/logger"
	"github.com/menuvia/menuvia/internal/observability"
	"github.com/menuvia/menuvia/internal/scheduler"
	"github.com/menuvia/menuvia/internal/subscription"
	"github.com/menuvia/menuvia/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the sweep
		audit.Module,
		subscription.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
