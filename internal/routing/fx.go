package routing

import (
	"github.com/stayloop/folio/internal/routing/repository"
	"github.com/stayloop/folio/internal/routing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("routing.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
