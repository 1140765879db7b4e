package recovery

import (
	"github.com/stayloop/folio/internal/recovery/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recovery.service",
	fx.Provide(service.New),
)
