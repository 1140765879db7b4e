package folio

import (
	"github.com/stayloop/folio/internal/folio/repository"
	"github.com/stayloop/folio/internal/folio/service"
	"go.uber.org/fx"
)

var Module = fx.Module("folio.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
