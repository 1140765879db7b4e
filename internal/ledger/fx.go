package ledger

import (
	"github.com/stayloop/folio/internal/ledger/repository"
	"github.com/stayloop/folio/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
