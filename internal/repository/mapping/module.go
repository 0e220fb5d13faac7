package mapping

import "go.uber.org/fx"

// Module provides the sync mapping repository to Fx.
var Module = fx.Provide(NewRepository)
