package reconciliation

import (
	"github.com/stayloop/folio/internal/reconciliation/repository"
	"github.com/stayloop/folio/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
