package unitsync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/geojson"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/floormap"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/unit"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/user"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/venue"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/blob"
)

// flakyBlob fails writes while failWrites is set.
type flakyBlob struct {
	blob.Storage
	failWrites bool
}

func (b *flakyBlob) Write(ctx context.Context, path string, data []byte) error {
	if b.failWrites {
		return errors.New("disk full")
	}
	return b.Storage.Write(ctx, path, data)
}

type fixture struct {
	coord  *Coordinator
	blobs  *flakyBlob
	store  *floormap.Store
	units  *unit.MemoryRepository
	venues *venue.MemoryRepository
	venue  *venue.Venue
	unit   *unit.Unit
}

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	fx := &fixture{
		blobs:  &flakyBlob{Storage: blob.NewLocal(t.TempDir())},
		units:  unit.NewMemoryRepository(),
		venues: venue.NewMemoryRepository(),
	}
	fx.store = floormap.NewStore(fx.blobs, nil, 0, zap.NewNop())
	fx.coord = NewCoordinator(fx.units, fx.venues, fx.store, zap.NewNop())
	fx.coord.now = func() time.Time { return fixedNow }

	fx.venue = &venue.Venue{ID: uuid.New(), Name: "Mall", Slug: "mall", Floors: map[int]string{-1: "", 0: ""}}
	require.NoError(t, fx.venues.Upsert(ctx, fx.venue))
	fx.unit = &unit.Unit{
		ID: uuid.New(), VenueID: fx.venue.ID, RoomID: "R-101", Floor: -1, Name: "Cafe",
		Content: unit.Content{Category: "food", Phone: "111"},
	}
	require.NoError(t, fx.units.Upsert(ctx, fx.unit))
	return fx
}

func (fx *fixture) writeFinal(t *testing.T, floor int, features ...geojson.Feature) {
	t.Helper()
	require.NoError(t, fx.store.Write(context.Background(), floormap.TierFinal, "mall", floor,
		geojson.NewFeatureCollection(features...)))
}

func (fx *fixture) readFinal(t *testing.T, floor int) *geojson.FeatureCollection {
	t.Helper()
	fc, err := fx.store.Read(context.Background(), floormap.TierFinal, "mall", floor)
	require.NoError(t, err)
	return fc
}

func (fx *fixture) storedUnit(t *testing.T) *unit.Unit {
	t.Helper()
	u, err := fx.units.GetByRoomID(context.Background(), fx.venue.ID.String(), "R-101")
	require.NoError(t, err)
	return u
}

func TestApplyUnitEdit_PropagatesToFinalArtifact(t *testing.T) {
	fx := newFixture(t)
	fx.writeFinal(t, -1,
		geojson.NewFeature("R-100", map[string]any{"name": "Bank"}),
		geojson.NewFeature("R-101", map[string]any{"name": "Cafe", "area_m2": 40.0}),
	)

	res, err := fx.coord.ApplyUnitEdit(context.Background(), &auth.System, fx.venue.ID.String(), "R-101", -1,
		map[string]any{"phone": "222", "logo": "/uploads/mall/cafe.png?v=7", "hours": ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"logo", "phone"}, res.Updated)
	assert.True(t, res.FeatureFound)
	assert.True(t, res.Synced)

	u := fx.storedUnit(t)
	assert.Equal(t, "222", u.Content.Phone)
	assert.Equal(t, "/uploads/mall/cafe.png", u.Content.Logo)
	assert.False(t, u.NeedsSync)
	require.NotNil(t, u.LastSynced)
	assert.True(t, fixedNow.Equal(*u.LastSynced))

	fc := fx.readFinal(t, -1)
	props := fc.Features[fc.Find("R-101")].Properties()
	assert.Equal(t, "222", props["phone"])
	assert.Equal(t, "/uploads/mall/cafe.png", props["logo"])
	assert.Equal(t, "food", props["category"])
	assert.Equal(t, "open", props["status"])
	assert.Equal(t, "", props["hours"])
	assert.Equal(t, json.Number("40"), props["area_m2"], "unrelated properties survive")
	assert.Equal(t, "2026-05-04T10:30:00Z", props["updated_at"])
	assert.Equal(t, "Bank", fc.Features[0].Properties()["name"])
}

func TestApplyUnitEdit_EmptyValuesAreNoChange(t *testing.T) {
	fx := newFixture(t)
	fx.writeFinal(t, -1, geojson.NewFeature("R-101", nil))

	res, err := fx.coord.ApplyUnitEdit(context.Background(), &auth.System, fx.venue.ID.String(), "R-101", -1,
		map[string]any{"phone": "", "category": nil})
	require.NoError(t, err)
	assert.Empty(t, res.Updated)

	u := fx.storedUnit(t)
	assert.Equal(t, "111", u.Content.Phone)
	assert.Equal(t, "food", u.Content.Category)
	assert.Equal(t, "111", fx.readFinal(t, -1).Features[0].Properties()["phone"])
}

func TestApplyUnitEdit_DataURIKeepsQuery(t *testing.T) {
	fx := newFixture(t)
	fx.writeFinal(t, -1, geojson.NewFeature("R-101", nil))
	inline := "data:image/png;base64,iVBOR?w0KGgo"

	_, err := fx.coord.ApplyUnitEdit(context.Background(), &auth.System, fx.venue.ID.String(), "R-101", -1,
		map[string]any{"header_image": inline})
	require.NoError(t, err)
	assert.Equal(t, inline, fx.storedUnit(t).Content.HeaderImage)
}

func TestApplyUnitEdit_FeatureMissingIsSilent(t *testing.T) {
	fx := newFixture(t)
	fx.writeFinal(t, -1, geojson.NewFeature("R-999", map[string]any{"name": "Other"}))
	before := fx.readFinal(t, -1)

	res, err := fx.coord.ApplyUnitEdit(context.Background(), &auth.System, fx.venue.ID.String(), "R-101", -1,
		map[string]any{"phone": "333"})
	require.NoError(t, err)
	assert.False(t, res.FeatureFound)
	assert.False(t, res.Synced)

	u := fx.storedUnit(t)
	assert.Equal(t, "333", u.Content.Phone)
	assert.False(t, u.NeedsSync)
	assert.Equal(t, before, fx.readFinal(t, -1))
}

func TestApplyUnitEdit_NoFinalArtifactLeavesPending(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.coord.ApplyUnitEdit(context.Background(), &auth.System, fx.venue.ID.String(), "R-101", -1,
		map[string]any{"phone": "444"})
	require.NoError(t, err)
	assert.False(t, res.Synced)

	u := fx.storedUnit(t)
	assert.Equal(t, "444", u.Content.Phone)
	assert.True(t, u.NeedsSync)
}

func TestApplyUnitEdit_WriteFailureKeepsFlag(t *testing.T) {
	fx := newFixture(t)
	fx.writeFinal(t, -1, geojson.NewFeature("R-101", nil))
	fx.blobs.failWrites = true

	_, err := fx.coord.ApplyUnitEdit(context.Background(), &auth.System, fx.venue.ID.String(), "R-101", -1,
		map[string]any{"phone": "555"})
	assert.ErrorIs(t, err, apperr.ErrArtifactWrite)

	u := fx.storedUnit(t)
	assert.Equal(t, "555", u.Content.Phone, "the record is not rolled back")
	assert.True(t, u.NeedsSync)

	fx.blobs.failWrites = false
	report, err := fx.coord.ReconcilePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.False(t, fx.storedUnit(t).NeedsSync)
	assert.Equal(t, "555", fx.readFinal(t, -1).Features[0].Properties()["phone"])
}

func TestApplyUnitEdit_Authorization(t *testing.T) {
	fx := newFixture(t)
	fx.writeFinal(t, -1, geojson.NewFeature("R-101", nil))
	ctx := context.Background()
	vid := fx.venue.ID.String()

	cases := []struct {
		name string
		p    *auth.Principal
		err  error
	}{
		{"anonymous", nil, apperr.ErrUnauthenticated},
		{"other venue owner", &auth.Principal{Role: user.RoleVenueOwner, VenueID: uuid.NewString()}, apperr.ErrForbidden},
		{"other unit owner", &auth.Principal{Role: user.RoleUnitOwner, VenueID: vid, RoomID: "R-102"}, apperr.ErrForbidden},
		{"unit owner", &auth.Principal{Role: user.RoleUnitOwner, VenueID: vid, RoomID: "R-101"}, nil},
		{"venue owner", &auth.Principal{Role: user.RoleVenueOwner, VenueID: vid}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := fx.coord.ApplyUnitEdit(ctx, c.p, vid, "R-101", -1, map[string]any{"phone": c.name})
			if c.err != nil {
				assert.ErrorIs(t, err, c.err)
				assert.NotEqual(t, c.name, fx.storedUnit(t).Content.Phone, "no write on rejection")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.name, fx.storedUnit(t).Content.Phone)
		})
	}
}

func TestApplyUnitEdit_InvalidValue(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.coord.ApplyUnitEdit(context.Background(), &auth.System, fx.venue.ID.String(), "R-101", -1,
		map[string]any{"is_special": "perhaps"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.False(t, fx.storedUnit(t).NeedsSync)

	_, err = fx.coord.ApplyUnitEdit(context.Background(), &auth.System, fx.venue.ID.String(), "R-404", -1,
		map[string]any{"phone": "1"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOverlay_RebuildClearsPending(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.store.Write(ctx, floormap.TierBase, "mall", -1,
		geojson.NewFeatureCollection(geojson.NewFeature("R-101", map[string]any{"name": "Base name"}))))

	u := fx.storedUnit(t)
	u.NeedsSync = true
	u.Content.Status = "closed"
	require.NoError(t, fx.units.Save(ctx, u))

	svc := floormap.NewService(fx.store, fx.venues, fx.coord, zap.NewNop())
	report, err := svc.RebuildVenue(ctx, "mall")
	require.NoError(t, err)
	assert.False(t, report.Failed())

	props := fx.readFinal(t, -1).Features[0].Properties()
	assert.Equal(t, "Cafe", props["name"])
	assert.Equal(t, "closed", props["status"])
	assert.False(t, fx.storedUnit(t).NeedsSync)
}

func TestOverlay_RebuildIsStable(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.store.Write(ctx, floormap.TierBase, "mall", -1,
		geojson.NewFeatureCollection(geojson.NewFeature("R-101", map[string]any{"name": "Base name"}))))
	u := fx.storedUnit(t)
	u.NeedsSync = true
	require.NoError(t, fx.units.Save(ctx, u))
	svc := floormap.NewService(fx.store, fx.venues, fx.coord, zap.NewNop())
	path := floormap.Path(floormap.TierFinal, "mall", -1)

	_, err := svc.RebuildVenue(ctx, "mall")
	require.NoError(t, err)
	first, err := fx.blobs.Read(ctx, path)
	require.NoError(t, err)

	fx.coord.now = func() time.Time { return fixedNow.Add(time.Hour) }
	_, err = svc.RebuildVenue(ctx, "mall")
	require.NoError(t, err)
	second, err := fx.blobs.Read(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, "2026-05-04T10:30:00Z", fx.readFinal(t, -1).Features[0].Properties()["updated_at"])
	assert.True(t, fixedNow.Equal(*fx.storedUnit(t).LastSynced))
}

func TestReconcilePending_MissingArtifact(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	u := fx.storedUnit(t)
	u.NeedsSync = true
	require.NoError(t, fx.units.Save(ctx, u))

	report, err := fx.coord.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pending)
	assert.Equal(t, 1, report.ArtifactMissing)
	assert.True(t, fx.storedUnit(t).NeedsSync)

	again, err := fx.coord.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, report, again)
}
