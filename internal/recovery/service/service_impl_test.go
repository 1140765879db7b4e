package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/stayloop/folio/internal/audit/domain"
	auditrepository "github.com/stayloop/folio/internal/audit/repository"
	auditservice "github.com/stayloop/folio/internal/audit/service"
	"github.com/stayloop/folio/internal/clock"
	"github.com/stayloop/folio/internal/config"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	foliorepository "github.com/stayloop/folio/internal/folio/repository"
	ledgerdomain "github.com/stayloop/folio/internal/ledger/domain"
	ledgerrepository "github.com/stayloop/folio/internal/ledger/repository"
	ledgerservice "github.com/stayloop/folio/internal/ledger/service"
	"github.com/stayloop/folio/internal/recovery/domain"
	routingdomain "github.com/stayloop/folio/internal/routing/domain"
	routingrepository "github.com/stayloop/folio/internal/routing/repository"
	routingservice "github.com/stayloop/folio/internal/routing/service"
	staydomain "github.com/stayloop/folio/internal/stay/domain"
	stayrepository "github.com/stayloop/folio/internal/stay/repository"
	"github.com/stayloop/folio/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// chargeFaultPoster fails the posting for one reference id so a sweep has a
// broken item to work around.
type chargeFaultPoster struct {
	ledgerdomain.Poster
	failRef string
}

func (p *chargeFaultPoster) Post(ctx context.Context, req ledgerdomain.PostRequest) (ledgerdomain.PostResult, error) {
	if p.failRef != "" && req.ReferenceID == p.failRef {
		return ledgerdomain.PostResult{}, errors.New("posting backend unavailable")
	}
	return p.Poster.Post(ctx, req)
}

type recoveryFixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	svc       domain.Service
	stayRepo  staydomain.Repository
	folioRepo foliodomain.Repository
	poster    *chargeFaultPoster
	tenantID  snowflake.ID
	ctx       context.Context
}

func newRecoveryFixture(t *testing.T) *recoveryFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&staydomain.Stay{},
		&foliodomain.Folio{},
		&ledgerdomain.Transaction{},
		&routingdomain.RoutingRule{},
		&auditdomain.AuditLog{},
	))
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_folios_booking_type ON folios(tenant_id, booking_id, type)")
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_reference ON folio_transactions(tenant_id, reference_type, reference_id)")

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 5, 11, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	stayRepo := stayrepository.Provide()
	folioRepo := foliorepository.Provide()
	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})
	routingSvc := routingservice.New(routingservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      routingrepository.Provide(),
		FolioRepo: folioRepo,
	})
	poster := &chargeFaultPoster{Poster: ledgerservice.New(ledgerservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      ledgerrepository.Provide(),
		FolioRepo: folioRepo,
		Routing:   routingSvc,
		Audit:     auditSvc,
	})}
	svc := New(Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Config: config.Config{
			Ledger: config.Ledger{RecoveryPageSize: 50},
		},
		Clock:     clk,
		StayRepo:  stayRepo,
		FolioRepo: folioRepo,
		Poster:    poster,
	})

	tenantID := node.Generate()
	return &recoveryFixture{
		db:        db,
		node:      node,
		svc:       svc,
		stayRepo:  stayRepo,
		folioRepo: folioRepo,
		poster:    poster,
		tenantID:  tenantID,
		ctx:       tenantctx.WithTenantID(context.Background(), tenantID),
	}
}

func (f *recoveryFixture) inHouseStay(t *testing.T, contracted int64) *staydomain.Stay {
	t.Helper()
	stay := &staydomain.Stay{
		ID:               f.node.Generate(),
		TenantID:         f.tenantID,
		GuestName:        "Guest",
		Status:           staydomain.StayStatusInHouse,
		ContractedAmount: contracted,
		Currency:         "USD",
	}
	require.NoError(t, f.db.Create(stay).Error)
	return stay
}

func (f *recoveryFixture) roomFolio(t *testing.T, stay *staydomain.Stay) *foliodomain.Folio {
	t.Helper()
	folio, err := f.folioRepo.FindByBookingAndType(f.ctx, f.db, f.tenantID, stay.ID, foliodomain.FolioTypeRoom)
	require.NoError(t, err)
	return folio
}

func TestRecoveryOpensMissingFoliosAndPostsCharges(t *testing.T) {
	f := newRecoveryFixture(t)
	stay := f.inHouseStay(t, 15000)

	summary, err := f.svc.Run(f.ctx, domain.RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.StaysScanned)
	assert.Equal(t, 1, summary.FoliosCreated)
	assert.Equal(t, 1, summary.ChargesPosted)
	assert.Empty(t, summary.Errors)

	folio := f.roomFolio(t, stay)
	require.NotNil(t, folio)
	assert.Equal(t, int64(15000), folio.TotalCharges)
	assert.Equal(t, "recovery", folio.Metadata["opened_by"])
}

func TestRecoveryRerunRepairsNothingNew(t *testing.T) {
	f := newRecoveryFixture(t)
	stay := f.inHouseStay(t, 15000)

	_, err := f.svc.Run(f.ctx, domain.RunRequest{})
	require.NoError(t, err)

	summary, err := f.svc.Run(f.ctx, domain.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.FoliosCreated)
	assert.Equal(t, 0, summary.ChargesPosted)

	folio := f.roomFolio(t, stay)
	require.NotNil(t, folio)
	assert.Equal(t, int64(15000), folio.TotalCharges)

	var count int64
	f.db.Model(&ledgerdomain.Transaction{}).Where("tenant_id = ?", f.tenantID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRecoverySkipsZeroContractStays(t *testing.T) {
	f := newRecoveryFixture(t)
	stay := f.inHouseStay(t, 0)

	summary, err := f.svc.Run(f.ctx, domain.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FoliosCreated)
	assert.Equal(t, 0, summary.ChargesPosted)

	folio := f.roomFolio(t, stay)
	require.NotNil(t, folio)
	assert.Equal(t, int64(0), folio.TotalCharges)
}

func TestRecoveryDryRunWritesNothing(t *testing.T) {
	f := newRecoveryFixture(t)
	stay := f.inHouseStay(t, 15000)

	summary, err := f.svc.Run(f.ctx, domain.RunRequest{DryRun: true})
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.FoliosCreated)

	assert.Nil(t, f.roomFolio(t, stay))
}

func TestRecoveryIsolatesItemFailures(t *testing.T) {
	f := newRecoveryFixture(t)
	bad := f.inHouseStay(t, 10000)
	good := f.inHouseStay(t, 15000)
	f.poster.failRef = bad.ID.String()

	summary, err := f.svc.Run(f.ctx, domain.RunRequest{})
	require.NoError(t, err)

	// The broken item is reported; the rest of the sweep still lands.
	assert.Equal(t, 2, summary.StaysScanned)
	assert.Equal(t, 2, summary.FoliosCreated)
	assert.Equal(t, 1, summary.ChargesPosted)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "folio", summary.Errors[0].Kind)
	assert.Contains(t, summary.Errors[0].Reason, "posting backend unavailable")

	goodFolio := f.roomFolio(t, good)
	require.NotNil(t, goodFolio)
	assert.Equal(t, int64(15000), goodFolio.TotalCharges)

	badFolio := f.roomFolio(t, bad)
	require.NotNil(t, badFolio)
	assert.Equal(t, int64(0), badFolio.TotalCharges)

	// Once the fault clears, the next run repairs the leftover item.
	f.poster.failRef = ""
	summary, err = f.svc.Run(f.ctx, domain.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ChargesPosted)
	assert.Empty(t, summary.Errors)

	badFolio = f.roomFolio(t, bad)
	require.NotNil(t, badFolio)
	assert.Equal(t, int64(10000), badFolio.TotalCharges)
}

func TestRecoveryLeavesManualChargesAlone(t *testing.T) {
	f := newRecoveryFixture(t)
	stay := f.inHouseStay(t, 15000)

	// Folio exists and already carries a charge from normal operation.
	folio := &foliodomain.Folio{
		ID:        f.node.Generate(),
		TenantID:  f.tenantID,
		BookingID: stay.ID,
		Type:      foliodomain.FolioTypeRoom,
		Status:    foliodomain.FolioStatusOpen,
		Currency:  "USD",
	}
	created, err := f.folioRepo.Insert(f.ctx, f.db, folio)
	require.NoError(t, err)
	require.True(t, created)
	applied, err := f.folioRepo.ApplyPosting(f.ctx, f.db, f.tenantID, folio.ID, foliodomain.PostingDelta{
		Charges: 8000,
		At:      time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, applied)

	summary, err := f.svc.Run(f.ctx, domain.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.FoliosCreated)
	assert.Equal(t, 0, summary.ChargesPosted)

	stored := f.roomFolio(t, stay)
	require.NotNil(t, stored)
	assert.Equal(t, int64(8000), stored.TotalCharges)
}
