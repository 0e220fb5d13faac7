package erpsync

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/erpsync/internal/catalog"
	"github.com/Additional-Code/erpsync/internal/config"
	"github.com/Additional-Code/erpsync/internal/erp"
	"github.com/Additional-Code/erpsync/internal/notify"
	"github.com/Additional-Code/erpsync/internal/repository/mapping"
	orderrepo "github.com/Additional-Code/erpsync/internal/repository/order"
	"github.com/Additional-Code/erpsync/internal/repository/synclog"
)

// Params defines dependencies for constructing Orchestrator through Fx.
type Params struct {
	fx.In

	Config   config.Config
	Orders   *orderrepo.Repository
	Mappings *mapping.Repository
	Logs     *synclog.Repository
	Client   *erp.Client
	Catalog  *catalog.Resolver
	Notifier *notify.Notifier
	Logger   *zap.Logger
}

// Module provides the sync orchestrator and its ERP collaborators to Fx.
var Module = fx.Options(
	erp.Module,
	catalog.Module,
	notify.Module,
	fx.Provide(NewFromParams),
)

// NewFromParams wires an Orchestrator from Fx-provided dependencies.
func NewFromParams(p Params) *Orchestrator {
	return New(Deps{
		Orders:   p.Orders,
		Mappings: p.Mappings,
		Logs:     p.Logs,
		Remote:   p.Client,
		Catalog:  p.Catalog,
		Notifier: p.Notifier,
	}, p.Config.Sync.Enabled, p.Logger)
}
