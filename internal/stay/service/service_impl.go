package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	"github.com/stayloop/folio/internal/stay/domain"
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
	Repo      domain.Repository
	FolioRepo foliodomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	folioRepo foliodomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("stay.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		folioRepo: p.FolioRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateStayRequest) (domain.Stay, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.Stay{}, domain.ErrInvalidTenant
	}

	guestName := strings.TrimSpace(req.GuestName)
	if guestName == "" {
		return domain.Stay{}, domain.ErrInvalidGuest
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := time.Now().UTC()
	stay := domain.Stay{
		ID:               s.genID.Generate(),
		TenantID:         tenantID,
		GuestName:        guestName,
		Status:           domain.StayStatusReserved,
		ContractedAmount: req.ContractedAmount,
		Currency:         currency,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Insert(ctx, s.db, &stay); err != nil {
		return domain.Stay{}, err
	}
	return stay, nil
}

// CheckIn marks the stay in-house and opens the room folio alongside it.
// The folio insert is idempotent, so re-running after a partial failure
// completes the missing half.
func (s *Service) CheckIn(ctx context.Context, req domain.CheckInRequest) (domain.Stay, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.Stay{}, domain.ErrInvalidTenant
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return domain.Stay{}, domain.ErrInvalidID
	}

	now := time.Now().UTC()
	var stay *domain.Stay
	err = s.db.Transaction(func(tx *gorm.DB) error {
		moved, err := s.repo.UpdateStatus(ctx, tx, tenantID, id, domain.StayStatusReserved, domain.StayStatusInHouse, now)
		if err != nil {
			return err
		}
		if !moved {
			existing, err := s.repo.FindByID(ctx, tx, tenantID, id)
			if err != nil {
				return err
			}
			if existing == nil {
				return domain.ErrNotFound
			}
			return domain.ErrWrongStatus
		}

		stay, err = s.repo.FindByID(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		if stay == nil {
			return domain.ErrNotFound
		}

		folio := foliodomain.Folio{
			ID:        s.genID.Generate(),
			TenantID:  tenantID,
			BookingID: id,
			Type:      foliodomain.FolioTypeRoom,
			Status:    foliodomain.FolioStatusOpen,
			Currency:  stay.Currency,
			Metadata:  datatypes.JSONMap{"opened_by": "check_in"},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := s.folioRepo.Insert(ctx, tx, &folio); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Stay{}, err
	}

	s.log.Info("checked in stay",
		zap.String("stay_id", id.String()),
		zap.String("guest_name", stay.GuestName),
	)
	return *stay, nil
}

func (s *Service) CheckOut(ctx context.Context, req domain.CheckOutRequest) (domain.Stay, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.Stay{}, domain.ErrInvalidTenant
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return domain.Stay{}, domain.ErrInvalidID
	}

	moved, err := s.repo.UpdateStatus(ctx, s.db, tenantID, id, domain.StayStatusInHouse, domain.StayStatusCheckedOut, time.Now().UTC())
	if err != nil {
		return domain.Stay{}, err
	}
	if !moved {
		existing, err := s.repo.FindByID(ctx, s.db, tenantID, id)
		if err != nil {
			return domain.Stay{}, err
		}
		if existing == nil {
			return domain.Stay{}, domain.ErrNotFound
		}
		return domain.Stay{}, domain.ErrWrongStatus
	}

	stay, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Stay{}, err
	}
	if stay == nil {
		return domain.Stay{}, domain.ErrNotFound
	}
	return *stay, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Stay, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.Stay{}, domain.ErrInvalidTenant
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return domain.Stay{}, domain.ErrInvalidID
	}

	stay, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Stay{}, err
	}
	if stay == nil {
		return domain.Stay{}, domain.ErrNotFound
	}
	return *stay, nil
}
