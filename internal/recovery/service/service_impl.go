package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/clock"
	"github.com/stayloop/folio/internal/config"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	ledgerdomain "github.com/stayloop/folio/internal/ledger/domain"
	"github.com/stayloop/folio/internal/observability/metrics"
	"github.com/stayloop/folio/internal/recovery/domain"
	staydomain "github.com/stayloop/folio/internal/stay/domain"
	"github.com/stayloop/folio/internal/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Config    config.Config
	Clock     clock.Clock
	StayRepo  staydomain.Repository
	FolioRepo foliodomain.Repository
	Poster    ledgerdomain.Poster
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	pageSize  int
	clock     clock.Clock
	stayRepo  staydomain.Repository
	folioRepo foliodomain.Repository
	poster    ledgerdomain.Poster
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("recovery.service"),
		genID:     p.GenID,
		pageSize:  p.Config.Ledger.RecoveryPageSize,
		clock:     p.Clock,
		stayRepo:  p.StayRepo,
		folioRepo: p.FolioRepo,
		poster:    p.Poster,
		metrics:   p.Metrics,
	}
}

// Run makes two idempotent passes over the tenant: in-house stays missing
// their room folio get one opened, and open room folios that never received
// the contracted room charge get it posted. Item failures are collected,
// never fatal, so one bad stay cannot block the rest of the sweep.
func (s *Service) Run(ctx context.Context, req domain.RunRequest) (domain.RunSummary, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.RunSummary{}, domain.ErrInvalidTenant
	}

	summary := domain.RunSummary{DryRun: req.DryRun}

	if err := s.repairMissingFolios(ctx, tenantID, req.DryRun, &summary); err != nil {
		return summary, err
	}
	if err := s.repairMissingCharges(ctx, tenantID, req.DryRun, &summary); err != nil {
		return summary, err
	}

	s.log.Info("recovery run finished",
		zap.Bool("dry_run", req.DryRun),
		zap.Int("stays_scanned", summary.StaysScanned),
		zap.Int("folios_created", summary.FoliosCreated),
		zap.Int("charges_posted", summary.ChargesPosted),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (s *Service) repairMissingFolios(ctx context.Context, tenantID snowflake.ID, dryRun bool, summary *domain.RunSummary) error {
	var afterID snowflake.ID
	for {
		stays, err := s.stayRepo.ListInHouse(ctx, s.db, tenantID, afterID, s.pageSize)
		if err != nil {
			return err
		}
		for _, stay := range stays {
			summary.StaysScanned++
			if err := s.ensureRoomFolio(ctx, tenantID, stay, dryRun, summary); err != nil {
				summary.Errors = append(summary.Errors, domain.ItemError{
					Kind:   "stay",
					ID:     stay.ID.String(),
					Reason: err.Error(),
				})
				s.log.Warn("recovery folio repair failed",
					zap.String("stay_id", stay.ID.String()),
					zap.Error(err),
				)
			}
		}
		if len(stays) < s.pageSize {
			return nil
		}
		afterID = stays[len(stays)-1].ID
	}
}

func (s *Service) ensureRoomFolio(ctx context.Context, tenantID snowflake.ID, stay *staydomain.Stay, dryRun bool, summary *domain.RunSummary) error {
	existing, err := s.folioRepo.FindByBookingAndType(ctx, s.db, tenantID, stay.ID, foliodomain.FolioTypeRoom)
	if err != nil {
		return err
	}
	if existing != nil {
		summary.Skipped++
		return nil
	}
	if dryRun {
		summary.FoliosCreated++
		return nil
	}

	now := s.clock.Now()
	folio := foliodomain.Folio{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		BookingID: stay.ID,
		Type:      foliodomain.FolioTypeRoom,
		Status:    foliodomain.FolioStatusOpen,
		Currency:  stay.Currency,
		Metadata:  datatypes.JSONMap{"opened_by": "recovery"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.folioRepo.Insert(ctx, s.db, &folio)
	if err != nil {
		return err
	}
	if !created {
		// Lost the race against check-in; the folio exists either way.
		summary.Skipped++
		return nil
	}

	summary.FoliosCreated++
	s.metrics.RecordRecoveryRepair(ctx, "folio_created")
	s.log.Info("recovery opened missing room folio",
		zap.String("stay_id", stay.ID.String()),
		zap.String("folio_id", folio.ID.String()),
	)
	return nil
}

func (s *Service) repairMissingCharges(ctx context.Context, tenantID snowflake.ID, dryRun bool, summary *domain.RunSummary) error {
	var afterID snowflake.ID
	for {
		folios, err := s.folioRepo.ListZeroChargeOpen(ctx, s.db, tenantID, foliodomain.FolioTypeRoom, afterID, s.pageSize)
		if err != nil {
			return err
		}
		for _, folio := range folios {
			if err := s.ensureRoomCharge(ctx, tenantID, folio, dryRun, summary); err != nil {
				summary.Errors = append(summary.Errors, domain.ItemError{
					Kind:   "folio",
					ID:     folio.ID.String(),
					Reason: err.Error(),
				})
				s.log.Warn("recovery charge repair failed",
					zap.String("folio_id", folio.ID.String()),
					zap.Error(err),
				)
			}
		}
		if len(folios) < s.pageSize {
			return nil
		}
		afterID = folios[len(folios)-1].ID
	}
}

func (s *Service) ensureRoomCharge(ctx context.Context, tenantID snowflake.ID, folio *foliodomain.Folio, dryRun bool, summary *domain.RunSummary) error {
	stay, err := s.stayRepo.FindByID(ctx, s.db, tenantID, folio.BookingID)
	if err != nil {
		return err
	}
	if stay == nil || stay.Status != staydomain.StayStatusInHouse || stay.ContractedAmount <= 0 {
		summary.Skipped++
		return nil
	}
	if dryRun {
		summary.ChargesPosted++
		return nil
	}

	result, err := s.poster.Post(ctx, ledgerdomain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          string(ledgerdomain.TransactionTypeCharge),
		Amount:        stay.ContractedAmount,
		Description:   fmt.Sprintf("Room charge for stay %s", stay.ID),
		Department:    "rooms",
		ReferenceType: "stay_charge",
		ReferenceID:   stay.ID.String(),
		Metadata:      map[string]any{"posted_by": "recovery"},
	})
	if err != nil {
		// A folio closed between the scan and the post is fine to skip.
		if errors.Is(err, ledgerdomain.ErrFolioClosed) {
			summary.Skipped++
			return nil
		}
		return err
	}
	if result.Replayed {
		summary.Skipped++
		return nil
	}

	summary.ChargesPosted++
	s.metrics.RecordRecoveryRepair(ctx, "charge_posted")
	s.log.Info("recovery posted missing room charge",
		zap.String("stay_id", stay.ID.String()),
		zap.String("folio_id", folio.ID.String()),
		zap.Int64("amount", stay.ContractedAmount),
	)
	return nil
}
