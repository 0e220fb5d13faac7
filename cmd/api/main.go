package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/erpsync/internal/app"
	"github.com/Additional-Code/erpsync/internal/logger"
)

// Runs the admin API and gRPC health service until SIGINT or SIGTERM.
func main() {
	fx.New(app.Module, logger.FxEvents).Run()
}
