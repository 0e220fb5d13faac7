package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/erpsync/internal/cache"
	"github.com/Additional-Code/erpsync/internal/config"
	"github.com/Additional-Code/erpsync/internal/database"
	"github.com/Additional-Code/erpsync/internal/logger"
	"github.com/Additional-Code/erpsync/internal/messaging"
	"github.com/Additional-Code/erpsync/internal/observability"
	repositorymapping "github.com/Additional-Code/erpsync/internal/repository/mapping"
	repositoryorder "github.com/Additional-Code/erpsync/internal/repository/order"
	repositorysynclog "github.com/Additional-Code/erpsync/internal/repository/synclog"
	grpcserver "github.com/Additional-Code/erpsync/internal/server/grpc"
	httpserver "github.com/Additional-Code/erpsync/internal/server/http"
	serviceerpsync "github.com/Additional-Code/erpsync/internal/service/erpsync"
	serviceorder "github.com/Additional-Code/erpsync/internal/service/order"
	transporthttp "github.com/Additional-Code/erpsync/internal/transport/http"
	"github.com/Additional-Code/erpsync/internal/worker"
	workerorder "github.com/Additional-Code/erpsync/internal/worker/order"
)

// Infra carries configuration, logging, telemetry and the shared clients.
var Infra = fx.Module("infra",
	config.Module,
	logger.Module,
	observability.Module,
	database.Module,
	cache.Module,
	messaging.Module,
)

// Stores provides the order, sync mapping and sync log repositories.
var Stores = fx.Module("stores",
	repositoryorder.Module,
	repositorymapping.Module,
	repositorysynclog.Module,
)

// Core is everything a command needs to read orders and run syncs: the
// order service plus the orchestrator with its ERP client, catalog and
// notifier.
var Core = fx.Options(
	Infra,
	Stores,
	serviceorder.Module,
	serviceerpsync.Module,
)

// HTTP serves the admin API and the gRPC health service.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker consumes order events and triggers syncs.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring used by cmd/api.
var Module = HTTP
