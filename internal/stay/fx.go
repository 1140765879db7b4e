package stay

import (
	"github.com/stayloop/folio/internal/stay/repository"
	"github.com/stayloop/folio/internal/stay/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stay.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
