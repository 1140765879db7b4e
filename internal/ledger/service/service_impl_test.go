package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/stayloop/folio/internal/audit/domain"
	auditrepository "github.com/stayloop/folio/internal/audit/repository"
	auditservice "github.com/stayloop/folio/internal/audit/service"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	foliorepository "github.com/stayloop/folio/internal/folio/repository"
	"github.com/stayloop/folio/internal/ledger/domain"
	"github.com/stayloop/folio/internal/ledger/repository"
	routingdomain "github.com/stayloop/folio/internal/routing/domain"
	routingrepository "github.com/stayloop/folio/internal/routing/repository"
	routingservice "github.com/stayloop/folio/internal/routing/service"
	"github.com/stayloop/folio/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type posterFixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	poster    domain.Poster
	folioRepo foliodomain.Repository
	routing   routingdomain.Service
	tenantID  snowflake.ID
	ctx       context.Context
}

func newPosterFixture(t *testing.T) *posterFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&foliodomain.Folio{},
		&domain.Transaction{},
		&routingdomain.RoutingRule{},
		&auditdomain.AuditLog{},
	))
	// ON CONFLICT targets need these indexes in place.
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_folios_booking_type ON folios(tenant_id, booking_id, type)")
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_reference ON folio_transactions(tenant_id, reference_type, reference_id)")

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

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
	poster := New(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      repository.Provide(),
		FolioRepo: folioRepo,
		Routing:   routingSvc,
		Audit:     auditSvc,
	})

	tenantID := node.Generate()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)
	ctx = tenantctx.WithActorID(ctx, "clerk-7")

	return &posterFixture{
		db:        db,
		node:      node,
		poster:    poster,
		folioRepo: folioRepo,
		routing:   routingSvc,
		tenantID:  tenantID,
		ctx:       ctx,
	}
}

func (f *posterFixture) openFolio(t *testing.T, folioType foliodomain.FolioType) *foliodomain.Folio {
	t.Helper()
	folio := &foliodomain.Folio{
		ID:        f.node.Generate(),
		TenantID:  f.tenantID,
		BookingID: f.node.Generate(),
		Type:      folioType,
		Status:    foliodomain.FolioStatusOpen,
		Currency:  "USD",
	}
	created, err := f.folioRepo.Insert(f.ctx, f.db, folio)
	require.NoError(t, err)
	require.True(t, created)
	return folio
}

func (f *posterFixture) reload(t *testing.T, id snowflake.ID) *foliodomain.Folio {
	t.Helper()
	folio, err := f.folioRepo.FindByID(f.ctx, f.db, f.tenantID, id)
	require.NoError(t, err)
	require.NotNil(t, folio)
	return folio
}

func TestPostChargeMovesBalance(t *testing.T) {
	f := newPosterFixture(t)
	folio := f.openFolio(t, foliodomain.FolioTypeRoom)

	result, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "charge",
		Amount:        12000,
		Description:   "Room night",
		Department:    "rooms",
		ReferenceType: "pms_event",
		ReferenceID:   "evt-1",
	})
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, int64(12000), result.Transaction.Amount)
	assert.Equal(t, int64(12000), result.Balance)

	stored := f.reload(t, folio.ID)
	assert.Equal(t, int64(12000), stored.TotalCharges)
	assert.Equal(t, int64(0), stored.TotalPayments)
	assert.Equal(t, int64(12000), stored.Balance)
}

func TestPostPaymentIsNegativeAndSettles(t *testing.T) {
	f := newPosterFixture(t)
	folio := f.openFolio(t, foliodomain.FolioTypeRoom)

	_, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "charge",
		Amount:        10000,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-1",
	})
	require.NoError(t, err)

	result, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "payment",
		Amount:        10000,
		Channel:       "card",
		ReferenceType: "payment_intent",
		ReferenceID:   "pi-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-10000), result.Transaction.Amount)
	assert.Equal(t, int64(0), result.Balance)

	stored := f.reload(t, folio.ID)
	assert.Equal(t, int64(10000), stored.TotalCharges)
	assert.Equal(t, int64(10000), stored.TotalPayments)
	assert.Equal(t, int64(0), stored.Balance)
}

func TestPostRefundReducesPayments(t *testing.T) {
	f := newPosterFixture(t)
	folio := f.openFolio(t, foliodomain.FolioTypeRoom)

	_, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "charge",
		Amount:        5000,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-1",
	})
	require.NoError(t, err)
	_, err = f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "payment",
		Amount:        5000,
		ReferenceType: "payment_intent",
		ReferenceID:   "pi-1",
	})
	require.NoError(t, err)

	result, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "refund",
		Amount:        2000,
		ReferenceType: "refund",
		ReferenceID:   "rf-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), result.Transaction.Amount)

	stored := f.reload(t, folio.ID)
	assert.Equal(t, int64(3000), stored.TotalPayments)
	assert.Equal(t, int64(2000), stored.Balance)
}

func TestPostReplaySameReferenceLeavesAggregatesAlone(t *testing.T) {
	f := newPosterFixture(t)
	folio := f.openFolio(t, foliodomain.FolioTypeRoom)

	first, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "charge",
		Amount:        8000,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-42",
	})
	require.NoError(t, err)

	second, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "charge",
		Amount:        8000,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-42",
	})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)

	stored := f.reload(t, folio.ID)
	assert.Equal(t, int64(8000), stored.TotalCharges)

	var count int64
	f.db.Model(&domain.Transaction{}).Where("tenant_id = ?", f.tenantID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestPostClosedFolioRejected(t *testing.T) {
	f := newPosterFixture(t)
	folio := f.openFolio(t, foliodomain.FolioTypeRoom)
	f.db.Model(&foliodomain.Folio{}).Where("id = ?", folio.ID).Update("status", foliodomain.FolioStatusClosed)

	_, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "charge",
		Amount:        100,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-1",
	})
	assert.ErrorIs(t, err, domain.ErrFolioClosed)
}

func TestPostRebateThroughGenericPostRejected(t *testing.T) {
	f := newPosterFixture(t)
	folio := f.openFolio(t, foliodomain.FolioTypeRoom)

	_, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "rebate",
		Amount:        100,
		ReferenceType: "goodwill",
		ReferenceID:   "gw-1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidType)
}

func TestPostRoutingResolvesAndAutoCreatesFolio(t *testing.T) {
	f := newPosterFixture(t)
	room := f.openFolio(t, foliodomain.FolioTypeRoom)

	_, err := f.routing.CreateRule(f.ctx, routingdomain.CreateRuleRequest{
		Category:        "restaurant",
		TargetType:      string(foliodomain.FolioTypeRestaurant),
		AutoCreateFolio: true,
	})
	require.NoError(t, err)

	result, err := f.poster.Post(f.ctx, domain.PostRequest{
		Routing: &domain.RoutingContext{
			BookingID: room.BookingID.String(),
			Category:  "restaurant",
		},
		Type:          "charge",
		Amount:        4500,
		ReferenceType: "pos_ticket",
		ReferenceID:   "tk-9",
	})
	require.NoError(t, err)

	target := f.reload(t, result.Transaction.FolioID)
	assert.Equal(t, foliodomain.FolioTypeRestaurant, target.Type)
	assert.Equal(t, room.BookingID, target.BookingID)
	assert.Equal(t, int64(4500), target.TotalCharges)

	// Room folio untouched.
	assert.Equal(t, int64(0), f.reload(t, room.ID).TotalCharges)
}

func TestPostUnroutedCategoryDefaultsToRoomFolio(t *testing.T) {
	f := newPosterFixture(t)
	room := f.openFolio(t, foliodomain.FolioTypeRoom)

	result, err := f.poster.Post(f.ctx, domain.PostRequest{
		Routing: &domain.RoutingContext{
			BookingID: room.BookingID.String(),
			Category:  "laundry",
		},
		Type:          "charge",
		Amount:        700,
		ReferenceType: "pos_ticket",
		ReferenceID:   "tk-10",
	})
	require.NoError(t, err)
	assert.Equal(t, room.ID, result.Transaction.FolioID)
}

func TestPostRebateFlatAndPercent(t *testing.T) {
	f := newPosterFixture(t)
	folio := f.openFolio(t, foliodomain.FolioTypeRoom)

	_, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "charge",
		Amount:        20000,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-1",
	})
	require.NoError(t, err)

	flat, err := f.poster.PostRebate(f.ctx, domain.RebateRequest{
		FolioID:       folio.ID.String(),
		Mode:          domain.RebateModeFlat,
		Amount:        3000,
		Reason:        "Noise complaint",
		ReferenceType: "goodwill",
		ReferenceID:   "gw-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), flat.RebateAmount)
	assert.Equal(t, int64(-3000), flat.Transaction.Amount)

	stored := f.reload(t, folio.ID)
	assert.Equal(t, int64(17000), stored.TotalCharges)
	assert.Equal(t, int64(17000), stored.Balance)

	// 10 percent of the remaining 17000 rounds down.
	pct, err := f.poster.PostRebate(f.ctx, domain.RebateRequest{
		FolioID:       folio.ID.String(),
		Mode:          domain.RebateModePercent,
		Amount:        10,
		ReferenceType: "goodwill",
		ReferenceID:   "gw-2",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1700), pct.RebateAmount)
	assert.Equal(t, int64(15300), f.reload(t, folio.ID).TotalCharges)
}

func TestPostRebateGuards(t *testing.T) {
	f := newPosterFixture(t)
	room := f.openFolio(t, foliodomain.FolioTypeRoom)
	spa := f.openFolio(t, foliodomain.FolioTypeSpa)

	_, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       room.ID.String(),
		Type:          "charge",
		Amount:        1000,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-1",
	})
	require.NoError(t, err)

	_, err = f.poster.PostRebate(f.ctx, domain.RebateRequest{
		FolioID:       spa.ID.String(),
		Mode:          domain.RebateModeFlat,
		Amount:        100,
		ReferenceType: "goodwill",
		ReferenceID:   "gw-1",
	})
	assert.ErrorIs(t, err, domain.ErrRebateWrongFolio)

	_, err = f.poster.PostRebate(f.ctx, domain.RebateRequest{
		FolioID:       room.ID.String(),
		Mode:          domain.RebateModeFlat,
		Amount:        1500,
		ReferenceType: "goodwill",
		ReferenceID:   "gw-2",
	})
	assert.ErrorIs(t, err, domain.ErrRebateExceedsCharges)

	_, err = f.poster.PostRebate(f.ctx, domain.RebateRequest{
		FolioID:       room.ID.String(),
		Mode:          domain.RebateMode("half"),
		Amount:        1,
		ReferenceType: "goodwill",
		ReferenceID:   "gw-3",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRebateMode)
}

func TestPostValidation(t *testing.T) {
	f := newPosterFixture(t)
	folio := f.openFolio(t, foliodomain.FolioTypeRoom)

	_, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "charge",
		Amount:        0,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.poster.Post(f.ctx, domain.PostRequest{
		FolioID: folio.ID.String(),
		Type:    "charge",
		Amount:  100,
	})
	assert.ErrorIs(t, err, domain.ErrMissingReference)

	_, err = f.poster.Post(f.ctx, domain.PostRequest{
		Type:          "charge",
		Amount:        100,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-2",
	})
	assert.ErrorIs(t, err, domain.ErrMissingTarget)

	_, err = f.poster.Post(context.Background(), domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "charge",
		Amount:        100,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-3",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
}

func TestPostWritesAuditEntry(t *testing.T) {
	f := newPosterFixture(t)
	folio := f.openFolio(t, foliodomain.FolioTypeRoom)

	result, err := f.poster.Post(f.ctx, domain.PostRequest{
		FolioID:       folio.ID.String(),
		Type:          "charge",
		Amount:        100,
		ReferenceType: "pms_event",
		ReferenceID:   "evt-1",
	})
	require.NoError(t, err)

	var entry auditdomain.AuditLog
	err = f.db.Where("tenant_id = ? AND action = ?", f.tenantID, "ledger.post").First(&entry).Error
	require.NoError(t, err)
	assert.Equal(t, result.Transaction.ID.String(), entry.TargetID)
	assert.Equal(t, "clerk-7", entry.ActorID)
}
