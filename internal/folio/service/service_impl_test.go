package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stayloop/folio/internal/folio/domain"
	"github.com/stayloop/folio/internal/folio/repository"
	"github.com/stayloop/folio/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newFolioService(t *testing.T) (domain.Service, *snowflake.Node, context.Context, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Folio{}))
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_folios_booking_type ON folios(tenant_id, booking_id, type)")

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})

	ctx := tenantctx.WithTenantID(context.Background(), node.Generate())
	return svc, node, ctx, db
}

func TestOpenFolioAndDuplicateRejected(t *testing.T) {
	svc, node, ctx, _ := newFolioService(t)
	bookingID := node.Generate()

	folio, err := svc.Open(ctx, domain.OpenFolioRequest{
		BookingID: bookingID.String(),
		Type:      "room",
		Currency:  "eur",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FolioStatusOpen, folio.Status)
	assert.Equal(t, "EUR", folio.Currency)
	assert.Equal(t, int64(0), folio.Balance)

	_, err = svc.Open(ctx, domain.OpenFolioRequest{
		BookingID: bookingID.String(),
		Type:      "room",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// A different type for the same booking is a separate folio.
	_, err = svc.Open(ctx, domain.OpenFolioRequest{
		BookingID: bookingID.String(),
		Type:      "spa",
	})
	assert.NoError(t, err)
}

func TestOpenFolioValidation(t *testing.T) {
	svc, node, ctx, _ := newFolioService(t)

	_, err := svc.Open(ctx, domain.OpenFolioRequest{BookingID: "abc", Type: "room"})
	assert.ErrorIs(t, err, domain.ErrInvalidBooking)

	_, err = svc.Open(ctx, domain.OpenFolioRequest{BookingID: node.Generate().String(), Type: "penthouse"})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = svc.Open(context.Background(), domain.OpenFolioRequest{BookingID: node.Generate().String(), Type: "room"})
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)
}

func TestCloseAndReopenFolio(t *testing.T) {
	svc, node, ctx, _ := newFolioService(t)

	folio, err := svc.Open(ctx, domain.OpenFolioRequest{
		BookingID: node.Generate().String(),
		Type:      "room",
	})
	require.NoError(t, err)

	closed, err := svc.Close(ctx, domain.CloseFolioRequest{ID: folio.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.FolioStatusClosed, closed.Status)

	_, err = svc.Close(ctx, domain.CloseFolioRequest{ID: folio.ID.String()})
	assert.ErrorIs(t, err, domain.ErrAlreadyClosed)

	reopened, err := svc.Reopen(ctx, domain.ReopenFolioRequest{ID: folio.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.FolioStatusOpen, reopened.Status)

	_, err = svc.Reopen(ctx, domain.ReopenFolioRequest{ID: folio.ID.String()})
	assert.ErrorIs(t, err, domain.ErrNotClosed)
}

func TestCloseWritesBalanceSummary(t *testing.T) {
	svc, node, ctx, db := newFolioService(t)

	folio, err := svc.Open(ctx, domain.OpenFolioRequest{
		BookingID: node.Generate().String(),
		Type:      "room",
	})
	require.NoError(t, err)

	// Aggregates as the poster would have left them.
	require.NoError(t, db.Model(&domain.Folio{}).
		Where("id = ?", folio.ID).
		Updates(map[string]any{"total_charges": 20000, "total_payments": 15000, "balance": 5000}).Error)

	closed, err := svc.Close(ctx, domain.CloseFolioRequest{ID: folio.ID.String(), Notes: "departure"})
	require.NoError(t, err)

	summary, ok := closed.Metadata["closing_summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(20000), summary["total_charges"])
	assert.Equal(t, int64(15000), summary["total_payments"])
	assert.Equal(t, int64(5000), summary["balance"])
	assert.Equal(t, "departure", summary["notes"])

	// The summary has to be persisted, not just returned.
	var stored domain.Folio
	require.NoError(t, db.First(&stored, "id = ?", folio.ID).Error)
	persisted, ok := stored.Metadata["closing_summary"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 5000, persisted["balance"])
	assert.Equal(t, "departure", persisted["notes"])

	reopened, err := svc.Reopen(ctx, domain.ReopenFolioRequest{ID: folio.ID.String(), Reason: "late charge"})
	require.NoError(t, err)
	assert.Equal(t, "late charge", reopened.Metadata["reopen_reason"])
	assert.NotEmpty(t, reopened.Metadata["reopened_at"])
}

func TestTransitionUnknownFolio(t *testing.T) {
	svc, node, ctx, _ := newFolioService(t)

	_, err := svc.Close(ctx, domain.CloseFolioRequest{ID: node.Generate().String()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListFoliosFiltersAndPages(t *testing.T) {
	svc, node, ctx, _ := newFolioService(t)
	bookingID := node.Generate()

	for _, folioType := range []string{"room", "spa", "restaurant"} {
		_, err := svc.Open(ctx, domain.OpenFolioRequest{
			BookingID: bookingID.String(),
			Type:      folioType,
		})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, domain.ListFolioRequest{BookingID: bookingID.String()})
	require.NoError(t, err)
	assert.Len(t, all.Folios, 3)
	assert.False(t, all.HasMore)

	spa, err := svc.List(ctx, domain.ListFolioRequest{BookingID: bookingID.String(), Type: "spa"})
	require.NoError(t, err)
	require.Len(t, spa.Folios, 1)
	assert.Equal(t, domain.FolioTypeSpa, spa.Folios[0].Type)

	paged, err := svc.List(ctx, domain.ListFolioRequest{BookingID: bookingID.String(), PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, paged.Folios, 2)
	assert.True(t, paged.HasMore)
	require.NotEmpty(t, paged.NextPageToken)

	rest, err := svc.List(ctx, domain.ListFolioRequest{
		BookingID: bookingID.String(),
		PageSize:  2,
		PageToken: paged.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, rest.Folios, 1)
	assert.False(t, rest.HasMore)
}
