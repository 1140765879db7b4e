package batch

import (
	"github.com/stayloop/folio/internal/batch/repository"
	"github.com/stayloop/folio/internal/batch/service"
	"go.uber.org/fx"
)

var Module = fx.Module("batch.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
