package migration

import (
	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/stayloop/folio/internal/audit/domain"
	batchdomain "github.com/stayloop/folio/internal/batch/domain"
	"github.com/stayloop/folio/internal/config"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	ledgerdomain "github.com/stayloop/folio/internal/ledger/domain"
	recondomain "github.com/stayloop/folio/internal/reconciliation/domain"
	routingdomain "github.com/stayloop/folio/internal/routing/domain"
	"github.com/stayloop/folio/internal/seed"
	staydomain "github.com/stayloop/folio/internal/stay/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// The versioned SQL targets postgres; other dialects get the
			// schema straight from the models.
			if err := conn.AutoMigrate(
				&foliodomain.Folio{},
				&ledgerdomain.Transaction{},
				&routingdomain.RoutingRule{},
				&staydomain.Stay{},
				&recondomain.SettlementBatch{},
				&recondomain.SettlementRecord{},
				&batchdomain.BatchSnapshot{},
				&auditdomain.AuditLog{},
			); err != nil {
				return err
			}
		}

		if cfg.DefaultTenantID != 0 {
			return seed.EnsureDefaultRoutingRules(conn, snowflake.ID(cfg.DefaultTenantID))
		}
		return nil
	}),
)
