package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	foliorepository "github.com/stayloop/folio/internal/folio/repository"
	"github.com/stayloop/folio/internal/stay/domain"
	"github.com/stayloop/folio/internal/stay/repository"
	"github.com/stayloop/folio/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stayFixture struct {
	db        *gorm.DB
	svc       domain.Service
	folioRepo foliodomain.Repository
	tenantID  snowflake.ID
	ctx       context.Context
}

func newStayFixture(t *testing.T) *stayFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Stay{}, &foliodomain.Folio{}))
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_folios_booking_type ON folios(tenant_id, booking_id, type)")

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	folioRepo := foliorepository.Provide()
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repository.Provide(),
		FolioRepo: folioRepo,
	})

	tenantID := node.Generate()
	return &stayFixture{
		db:        db,
		svc:       svc,
		folioRepo: folioRepo,
		tenantID:  tenantID,
		ctx:       tenantctx.WithTenantID(context.Background(), tenantID),
	}
}

func TestCheckInOpensRoomFolio(t *testing.T) {
	f := newStayFixture(t)

	stay, err := f.svc.Create(f.ctx, domain.CreateStayRequest{
		GuestName:        "Ada Quinn",
		ContractedAmount: 12000,
		Currency:         "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StayStatusReserved, stay.Status)
	assert.Equal(t, "USD", stay.Currency)

	checked, err := f.svc.CheckIn(f.ctx, domain.CheckInRequest{ID: stay.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.StayStatusInHouse, checked.Status)

	folio, err := f.folioRepo.FindByBookingAndType(f.ctx, f.db, f.tenantID, stay.ID, foliodomain.FolioTypeRoom)
	require.NoError(t, err)
	require.NotNil(t, folio)
	assert.Equal(t, "check_in", folio.Metadata["opened_by"])
	assert.Equal(t, "USD", folio.Currency)
}

func TestCheckInTwiceRejectedButFolioSurvives(t *testing.T) {
	f := newStayFixture(t)

	stay, err := f.svc.Create(f.ctx, domain.CreateStayRequest{GuestName: "Ada Quinn"})
	require.NoError(t, err)

	_, err = f.svc.CheckIn(f.ctx, domain.CheckInRequest{ID: stay.ID.String()})
	require.NoError(t, err)

	_, err = f.svc.CheckIn(f.ctx, domain.CheckInRequest{ID: stay.ID.String()})
	assert.ErrorIs(t, err, domain.ErrWrongStatus)

	var count int64
	f.db.Model(&foliodomain.Folio{}).Where("booking_id = ?", stay.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCheckOutLifecycle(t *testing.T) {
	f := newStayFixture(t)

	stay, err := f.svc.Create(f.ctx, domain.CreateStayRequest{GuestName: "Ada Quinn"})
	require.NoError(t, err)

	// Cannot check out before checking in.
	_, err = f.svc.CheckOut(f.ctx, domain.CheckOutRequest{ID: stay.ID.String()})
	assert.ErrorIs(t, err, domain.ErrWrongStatus)

	_, err = f.svc.CheckIn(f.ctx, domain.CheckInRequest{ID: stay.ID.String()})
	require.NoError(t, err)

	out, err := f.svc.CheckOut(f.ctx, domain.CheckOutRequest{ID: stay.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.StayStatusCheckedOut, out.Status)
}

func TestCreateStayValidation(t *testing.T) {
	f := newStayFixture(t)

	_, err := f.svc.Create(f.ctx, domain.CreateStayRequest{GuestName: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidGuest)

	_, err = f.svc.GetByID(f.ctx, "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
