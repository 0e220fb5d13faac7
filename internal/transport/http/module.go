package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/Additional-Code/erpsync/internal/transport/http/order"
	"github.com/Additional-Code/erpsync/internal/transport/http/syncadmin"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	syncadmin.Module,
)
