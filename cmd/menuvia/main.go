package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/menuvia/menuvia/internal/clock"
	"github.com/menuvia/menuvia/internal/config"
	"github.com/menuvia/menuvia/internal/logger"
	"github.com/menuvia/menuvia/internal/migration"
	"github.com/menuvia/menuvia/internal/observability"
	"github.com/menuvia/menuvia/internal/server"
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
		migration.Module,
		server.Module,
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
