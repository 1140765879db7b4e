package audit

import (
	"github.com/stayloop/folio/internal/audit/repository"
	"github.com/stayloop/folio/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
